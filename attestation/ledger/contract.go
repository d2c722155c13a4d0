package ledger

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// -- Embeds & ABI Handling --

//go:embed registry-contract/attestation_registry_abi.json
var registryABIJSON []byte

var (
	parsedABI    abi.ABI
	parseABIOnce sync.Once
	errParseABI  error
)

// loadABI ensures the registry ABI is parsed exactly once.
func loadABI() (abi.ABI, error) {
	parseABIOnce.Do(func() {
		type hardhatArtifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		var artifact hardhatArtifact
		if err := json.Unmarshal(registryABIJSON, &artifact); err != nil {
			errParseABI = fmt.Errorf("failed to unmarshal artifact JSON: %w", err)
			return
		}
		parsedABI, errParseABI = abi.JSON(strings.NewReader(string(artifact.ABI)))
	})
	return parsedABI, errParseABI
}

// registryRecord mirrors the registry contract's attestation tuple.
type registryRecord struct {
	ObjectId   [32]byte
	RecordType string
	OwnerKind  uint8
	Owner      common.Address
	Issuer     common.Address
	Recipient  common.Address
	IssuedAt   uint64
	ExpiresAt  uint64
	Status     uint8
	Claims     string
}

// ClientConfig holds configuration for the registry contract client.
type ClientConfig struct {
	RPCURL          string
	RegistryAddress string
	// Optional: defaults to 15s if not set.
	RequestTimeout time.Duration
}

// ContractClient is a read-only client of the attestation registry contract.
// It implements Client and IssuerSource. It holds no signing key and exposes
// no transaction path.
type ContractClient struct {
	eth          *ethclient.Client
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
}

// Dial connects to the ledger RPC endpoint and binds the registry contract.
// The underlying HTTP transport is instrumented with otelhttp.
func Dial(ctx context.Context, cfg ClientConfig) (*ContractClient, error) {
	if cfg.RegistryAddress == "" {
		return nil, errors.New("registry contract address is required")
	}
	if cfg.RPCURL == "" {
		return nil, errors.New("RPC URL is required")
	}

	contractABI, err := loadABI()
	if err != nil {
		return nil, err
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}

	rpcClient, err := rpc.DialOptions(ctx, cfg.RPCURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger RPC: %w", err)
	}

	eth := ethclient.NewClient(rpcClient)
	addr := common.HexToAddress(cfg.RegistryAddress)
	contract := bind.NewBoundContract(addr, contractABI, eth, nil, nil)

	return &ContractClient{
		eth:          eth,
		contract:     contract,
		contractABI:  contractABI,
		contractAddr: addr,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *ContractClient) Close() {
	c.eth.Close()
}

// ListCredentialRecords enumerates registry records for the subject via the
// getAttestations view call. Records whose declared type differs from
// credentialType are still returned; filtering is the extractor's concern.
func (c *ContractClient) ListCredentialRecords(ctx context.Context, subject common.Address, credentialType string) ([]RawRecord, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAttestations", subject)
	if err != nil {
		return nil, &TransportError{Op: "getAttestations", Err: err}
	}

	records := *abi.ConvertType(out[0], new([]registryRecord)).(*[]registryRecord)

	return lo.Map(records, func(rec registryRecord, _ int) RawRecord {
		return RawRecord{
			ObjectID:   rec.ObjectId,
			RecordType: rec.RecordType,
			OwnerKind:  OwnerKind(rec.OwnerKind),
			Owner:      rec.Owner,
			Issuer:     rec.Issuer,
			Recipient:  rec.Recipient,
			IssuedAt:   rec.IssuedAt,
			ExpiresAt:  rec.ExpiresAt,
			StatusFlag: rec.Status,
			Claims:     []byte(rec.Claims),
		}
	}), nil
}

// EvaluateEffectiveStatus performs the evaluateStatus view call and returns
// the raw return data untouched, together with the type the ABI declares for
// it. Decoding is left to the caller so that malformed enumerator payloads
// surface as decode failures rather than being coerced here.
func (c *ContractClient) EvaluateEffectiveStatus(ctx context.Context, objectID [32]byte) (StatusEnvelope, error) {
	input, err := c.contractABI.Pack("evaluateStatus", objectID)
	if err != nil {
		return StatusEnvelope{}, &TransportError{Op: "evaluateStatus", Err: err}
	}

	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contractAddr, Data: input}, nil)
	if err != nil {
		return StatusEnvelope{}, &TransportError{Op: "evaluateStatus", Err: err}
	}
	if len(raw) == 0 {
		return StatusEnvelope{}, &EvaluationError{
			ObjectID: common.Hash(objectID).Hex(),
			Err:      errors.New("registry returned no data; record unknown"),
		}
	}

	return StatusEnvelope{
		DeclaredType: c.contractABI.Methods["evaluateStatus"].Outputs[0].Type.String(),
		Payload:      raw,
	}, nil
}

// ListAuthorizedIssuers returns the registry's current trusted-issuer set.
func (c *ContractClient) ListAuthorizedIssuers(ctx context.Context) ([]common.Address, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getIssuers")
	if err != nil {
		return nil, &TransportError{Op: "getIssuers", Err: err}
	}

	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}
