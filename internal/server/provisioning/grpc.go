package provisioning

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/hkdf"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// CredentialHeader carries the device credential on node calls
const CredentialHeader = "x-device-credential"

const (
	methodRegister     = "/scheduler.Scheduler/Register"
	methodRecover      = "/scheduler.Scheduler/Recover"
	methodAuthenticate = "/scheduler.Scheduler/Authenticate"
	methodGetInfo      = "/node.Node/GetInfo"
	methodListFunds    = "/node.Node/ListFunds"
	methodOffer        = "/node.Node/Offer"
)

var nodeSecretInfo = []byte("nodekeeper/node-secret/v1")

// GRPCConfig holds connection settings for the scheduler
type GRPCConfig struct {
	Address  string
	CertPath string
	KeyPath  string
	CAPath   string
	Network  string
}

// GRPCClient talks to the scheduler and node services over gRPC with mTLS
type GRPCClient struct {
	conn    *grpc.ClientConn
	network string
	now     func() time.Time
}

// NewGRPCClient loads the developer certificate and dials the scheduler
func NewGRPCClient(cfg GRPCConfig) (*GRPCClient, error) {
	tlsCfg, err := loadTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg)),
		grpc.WithUnaryInterceptor(credentialInterceptor),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client: %w", err)
	}

	return NewGRPCClientWithConn(conn, cfg.Network), nil
}

// NewGRPCClientWithConn wraps an existing connection. The connection must
// have been created with CredentialInterceptor for node calls to be authenticated.
func NewGRPCClientWithConn(conn *grpc.ClientConn, network string) *GRPCClient {
	return &GRPCClient{conn: conn, network: network, now: time.Now}
}

// CredentialInterceptor returns the interceptor that attaches the device credential
func CredentialInterceptor() grpc.UnaryClientInterceptor {
	return credentialInterceptor
}

// Close closes the underlying connection
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func loadTLSConfig(cfg GRPCConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load developer certificate: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.CAPath != "" {
		caPEM, err := os.ReadFile(cfg.CAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAPath)
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}

type credentialKey struct{}

func withCredential(ctx context.Context, credential []byte) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

func credentialInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if credential, ok := ctx.Value(credentialKey{}).([]byte); ok {
		md, _ := metadata.FromOutgoingContext(ctx)
		md = md.Copy()
		if md == nil {
			md = metadata.MD{}
		}
		md.Set(CredentialHeader, base64.StdEncoding.EncodeToString(credential))
		ctx = metadata.NewOutgoingContext(ctx, md)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// nodeSecret derives the node key material from the binary seed.
// The seed itself never leaves the process.
func nodeSecret(seed []byte) ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, nodeSecretInfo), secret); err != nil {
		return nil, fmt.Errorf("failed to derive node secret: %w", err)
	}
	return secret, nil
}

// Register creates a new node for the seed and returns its device credential
func (c *GRPCClient) Register(ctx context.Context, seed []byte) ([]byte, error) {
	return c.enroll(ctx, methodRegister, seed)
}

// Recover re-issues a device credential for an existing node
func (c *GRPCClient) Recover(ctx context.Context, seed []byte) ([]byte, error) {
	return c.enroll(ctx, methodRecover, seed)
}

func (c *GRPCClient) enroll(ctx context.Context, method string, seed []byte) ([]byte, error) {
	secret, err := nodeSecret(seed)
	if err != nil {
		return nil, err
	}

	req, err := structpb.NewStruct(map[string]interface{}{
		"network":     c.network,
		"node_secret": base64.StdEncoding.EncodeToString(secret),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, wrapRPCError(method, err)
	}

	credential, err := base64.StdEncoding.DecodeString(stringField(resp, "device_credential"))
	if err != nil || len(credential) == 0 {
		return nil, fmt.Errorf("%w: %s: empty or malformed device credential", ErrProvisioning, method)
	}

	return credential, nil
}

// Authenticate checks the credential with the scheduler and returns a node session
func (c *GRPCClient) Authenticate(ctx context.Context, credential []byte) (Session, error) {
	if len(credential) == 0 {
		return nil, fmt.Errorf("%w: empty device credential", ErrProvisioning)
	}

	req, err := structpb.NewStruct(map[string]interface{}{"network": c.network})
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(withCredential(ctx, credential), methodAuthenticate, req, resp); err != nil {
		return nil, wrapRPCError(methodAuthenticate, err)
	}

	return &grpcSession{
		client:     c,
		credential: credential,
		nodeID:     stringField(resp, "node_id"),
	}, nil
}

type grpcSession struct {
	client     *GRPCClient
	nodeID     string
	credential []byte
}

func (s *grpcSession) call(ctx context.Context, method string, fields map[string]interface{}) (*structpb.Struct, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	if s.nodeID != "" {
		fields["node_id"] = s.nodeID
	}

	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := s.client.conn.Invoke(withCredential(ctx, s.credential), method, req, resp); err != nil {
		return nil, wrapRPCError(method, err)
	}
	return resp, nil
}

// GetInfo returns node identity and channel counters
func (s *grpcSession) GetInfo(ctx context.Context) (*NodeInfo, error) {
	resp, err := s.call(ctx, methodGetInfo, nil)
	if err != nil {
		return nil, err
	}

	return &NodeInfo{
		NodeID:              stringField(resp, "node_id"),
		Alias:               stringField(resp, "alias"),
		Color:               stringField(resp, "color"),
		Network:             stringField(resp, "network"),
		NumPeers:            uint32(uintField(resp, "num_peers")),
		NumPendingChannels:  uint32(uintField(resp, "num_pending_channels")),
		NumActiveChannels:   uint32(uintField(resp, "num_active_channels")),
		NumInactiveChannels: uint32(uintField(resp, "num_inactive_channels")),
		BlockHeight:         uint32(uintField(resp, "blockheight")),
		FeesCollectedMsat:   uintField(resp, "fees_collected_msat"),
	}, nil
}

// GetBalance lists unspent funds and sums them
func (s *grpcSession) GetBalance(ctx context.Context) (*Balance, error) {
	resp, err := s.call(ctx, methodListFunds, map[string]interface{}{"spent": false})
	if err != nil {
		return nil, err
	}

	var outputs []FundOutput
	for _, v := range resp.GetFields()["outputs"].GetListValue().GetValues() {
		o := v.GetStructValue()
		outputs = append(outputs, FundOutput{
			AmountMsat: uintField(o, "amount_msat"),
			Confirmed:  stringField(o, "status") == "confirmed",
		})
	}

	var channels []FundChannel
	for _, v := range resp.GetFields()["channels"].GetListValue().GetValues() {
		channels = append(channels, FundChannel{
			OurAmountMsat: uintField(v.GetStructValue(), "our_amount_msat"),
		})
	}

	balance := SummarizeFunds(outputs, channels)
	return &balance, nil
}

// CreateOffer creates a BOLT12 offer
func (s *grpcSession) CreateOffer(ctx context.Context, req OfferRequest) (*Offer, error) {
	description := req.Description
	if description == "" {
		description = DefaultOfferDescription
	}

	resp, err := s.call(ctx, methodOffer, map[string]interface{}{
		"amount":      OfferAmount(req.AmountMsat),
		"description": description,
		"label":       OfferLabel(s.client.now()),
	})
	if err != nil {
		return nil, err
	}

	offer := &Offer{
		Bolt12:      stringField(resp, "bolt12"),
		OfferID:     stringField(resp, "offer_id"),
		Description: description,
		Active:      resp.GetFields()["active"].GetBoolValue(),
	}
	if req.AmountMsat != nil && *req.AmountMsat > 0 {
		amount := *req.AmountMsat
		offer.AmountMsat = &amount
	}
	if offer.Bolt12 == "" {
		return nil, fmt.Errorf("%w: %s: empty offer", ErrProvisioning, methodOffer)
	}

	return offer, nil
}

func wrapRPCError(method string, err error) error {
	if st, ok := status.FromError(err); ok {
		return fmt.Errorf("%w: %s: %s: %s", ErrProvisioning, method, st.Code(), st.Message())
	}
	return fmt.Errorf("%w: %s: %v", ErrProvisioning, method, err)
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// uintField читает число, переданное как number или как строка
// (msat значения не помещаются в float64 без потерь)
func uintField(s *structpb.Struct, key string) uint64 {
	v := s.GetFields()[key]
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if k.NumberValue < 0 {
			return 0
		}
		return uint64(k.NumberValue)
	case *structpb.Value_StringValue:
		n, err := strconv.ParseUint(k.StringValue, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
