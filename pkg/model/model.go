// Package model defines the database models of the trading desk and opens the mysql and redis connections.
package model

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type Model struct {
	CreatedAt time.Time `json:"createdAt" gorm:"omitempty; not null; default:CURRENT_TIMESTAMP(3);"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"omitempty; not null; default:CURRENT_TIMESTAMP(3);"`
}

// GormArray is a gorm customer datatype, for storing string arrays in mysql using json
type GormArray []string

func (a GormArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	return string(b), err
}

func (a *GormArray) Scan(input interface{}) error {
	switch v := input.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = nil
		return nil
	}
	return errors.New("unsupported GormArray source")
}

func (a GormArray) GormDataType() string {
	return "json"
}

// GormTime is a gorm customer datatype, for solving mysql's NO_ZERO_DATE problem.
// The zero value is stored as 1000-01-01 and read back as zero.
type GormTime time.Time

var gormZeroTime = time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC)

func (t GormTime) Value() (driver.Value, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return "1000-01-01 00:00:00.000", nil
	}
	return tt.Format("2006-01-02 15:04:05.999"), nil
}

func (t *GormTime) Scan(value interface{}) error {
	nullTime := &sql.NullTime{}
	err := nullTime.Scan(value)
	if nullTime.Time.Year() <= gormZeroTime.Year() {
		*t = GormTime{}
		return err
	}
	*t = GormTime(nullTime.Time)
	return err
}

func (t GormTime) GormDataType() string {
	return "datetime(3)"
}

func (t GormTime) IsZero() bool {
	return time.Time(t).IsZero()
}

func (t GormTime) Time() time.Time {
	return time.Time(t)
}

func (t GormTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time())
}

func (t *GormTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = GormTime{}
		return nil
	}
	var tt time.Time
	if err := json.Unmarshal(b, &tt); err != nil {
		return err
	}
	*t = GormTime(tt)
	return nil
}
