package xlog

import (
	"flag"
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	Zap = zap.NewNop()

	EnvMode  = "development"
	EnvColor = false
)

func init() {
	if mode := os.Getenv("MD_LOG_MODE"); mode != "" {
		EnvMode = mode
	}

	color := os.Getenv("MD_LOG_COLOR")
	if color == "" && flag.Lookup("test.v") == nil {
		color = "true"
	}
	EnvColor = color != "" && color != "false" && color != "0"
}

// Init builds the zap core for the app, writing JSON lines to logPath (rotated) and a readable copy to stdout.
func Init(name string, logPath string) {
	if name == "" {
		name = "metaldesk"
	}
	if logPath == "" {
		logPath = path.Join("logs", name+".log")
	}

	Zap = NewZap(name, logPath, EnvMode != "release")
	Zap.Info("zap init succeed", FileField())
}

func NewZap(name, logPath string, debug bool) *zap.Logger {
	hook := lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    128, // MB
		MaxAge:     30,  // days
		MaxBackups: 30,
		Compress:   false,
	}
	stdout := &consoleWriter{Color: EnvColor}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "file",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	atomicLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		atomicLevel.SetLevel(zap.DebugLevel)
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(&hook), zapcore.AddSync(stdout)),
		atomicLevel,
	)

	return zap.New(core, zap.Development(), zap.Fields(zap.String("app", name)))
}

func FileField() zap.Field {
	return zap.String("file", FileWithLineNum())
}

// FileWithLineNum returns dir/file.go:line of the first caller outside the logging plumbing.
func FileWithLineNum() string {
	var (
		file string
		line int
	)

	for i := 0; i < 15; i++ {
		_, _file, _line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		if !strings.Contains(_file, "/pkg/xlog/") &&
			!strings.Contains(_file, "/pkg/model/xgorm/") &&
			!strings.Contains(_file, "gin-gonic/gin") &&
			!strings.Contains(_file, "gorm.io/gorm") {
			file = _file
			line = _line
			break
		}
	}

	var dir, fname string
	ss := strings.Split(file, "/")
	if len(ss) > 0 {
		fname = ss[len(ss)-1]
	}
	if len(ss) > 1 {
		dir = ss[len(ss)-2]
	}

	return fmt.Sprintf("%s/%s:%d", dir, fname, line)
}
