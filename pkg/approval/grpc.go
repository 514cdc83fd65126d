package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// The evaluator service speaks google.protobuf.Struct in both directions,
// so neither side needs generated stubs.
const (
	ServiceName    = "metaldesk.approval.ApprovalService"
	MethodEvaluate = "/" + ServiceName + "/Evaluate"
)

// Client calls a remote evaluator. There is no retry: a failed call fails ticket creation.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

var _ Evaluator = (*Client)(nil)

func Dial(target string, timeout time.Duration) (*Client, error) {
	conn, err := grpc.Dial(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return NewClient(conn, timeout), nil
}

func NewClient(conn *grpc.ClientConn, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Evaluate(ctx context.Context, a Attributes) (Decision, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := a.toStruct()
	if err != nil {
		return Decision{}, err
	}
	resp := new(structpb.Struct)
	if err = c.conn.Invoke(ctx, MethodEvaluate, req, resp); err != nil {
		return Decision{}, fmt.Errorf("approval evaluate: %w", err)
	}
	return decisionFromStruct(resp), nil
}

// RegisterServer exposes ev as the evaluator service on s.
func RegisterServer(s *grpc.Server, ev Evaluator) {
	s.RegisterService(&serviceDesc, ev)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Evaluator)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "approval",
}

func evaluateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		a, err := attributesFromStruct(req.(*structpb.Struct))
		if err != nil {
			return nil, err
		}
		d, err := srv.(Evaluator).Evaluate(ctx, a)
		if err != nil {
			return nil, err
		}
		return d.toStruct()
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodEvaluate}
	return interceptor(ctx, in, info, handler)
}

func (a Attributes) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"side":           a.Side,
		"commodity_type": a.CommodityType,
		"quantity":       a.Quantity.String(),
		"pricing_type":   a.PricingType,
		"price":          a.Price.String(),
		"currency":       a.Currency,
		"trader_id":      float64(a.TraderID),
		"company_id":     float64(a.CompanyID),
	})
}

func attributesFromStruct(s *structpb.Struct) (a Attributes, err error) {
	f := s.GetFields()
	if f == nil {
		return a, errors.New("empty attributes")
	}
	a.Side = f["side"].GetStringValue()
	a.CommodityType = f["commodity_type"].GetStringValue()
	a.PricingType = f["pricing_type"].GetStringValue()
	a.Currency = f["currency"].GetStringValue()
	a.TraderID = int64(f["trader_id"].GetNumberValue())
	a.CompanyID = int64(f["company_id"].GetNumberValue())
	if a.Quantity, err = decimal.NewFromString(f["quantity"].GetStringValue()); err != nil {
		return a, fmt.Errorf("quantity: %w", err)
	}
	if a.Price, err = decimal.NewFromString(f["price"].GetStringValue()); err != nil {
		return a, fmt.Errorf("price: %w", err)
	}
	return a, nil
}

func (d Decision) toStruct() (*structpb.Struct, error) {
	approvers := make([]interface{}, 0, len(d.RequiredApprovers))
	for _, a := range d.RequiredApprovers {
		approvers = append(approvers, a)
	}
	return structpb.NewStruct(map[string]interface{}{
		"requires_approval":  d.RequiresApproval,
		"rule_triggered":     d.RuleTriggered,
		"required_approvers": approvers,
	})
}

func decisionFromStruct(s *structpb.Struct) Decision {
	f := s.GetFields()
	d := Decision{
		RequiresApproval: f["requires_approval"].GetBoolValue(),
		RuleTriggered:    f["rule_triggered"].GetStringValue(),
	}
	for _, v := range f["required_approvers"].GetListValue().GetValues() {
		d.RequiredApprovers = append(d.RequiredApprovers, v.GetStringValue())
	}
	return d
}
