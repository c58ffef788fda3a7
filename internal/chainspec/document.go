package chainspec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/vk/genesisforge/internal/stamp"
)

// Kind tags a spec document as plain or raw.
type Kind int

const (
	Plain Kind = iota + 1
	Raw
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Raw:
		return "raw"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Document is a spec document exactly as the executable emitted it.
type Document struct {
	Kind Kind
	Data []byte
	// Path is where the document was persisted; empty until then.
	Path string
	// Producer is the stamp of the executable that emitted the document.
	Producer stamp.Stamp
	// Digest is the stamp of Data.
	Digest stamp.Stamp
}

// PlainSpec is the structured view of a plain document.
type PlainSpec struct {
	Name               string                     `json:"name"`
	ID                 string                     `json:"id"`
	ChainType          string                     `json:"chainType"`
	BootNodes          []string                   `json:"bootNodes"`
	TelemetryEndpoints json.RawMessage            `json:"telemetryEndpoints"`
	ProtocolID         *string                    `json:"protocolId"`
	Properties         map[string]json.RawMessage `json:"properties"`
	Genesis            struct {
		Runtime map[string]json.RawMessage `json:"runtime"`
	} `json:"genesis"`
}

// RawSpec is the structured view of a raw document.
type RawSpec struct {
	Name      string   `json:"name"`
	ID        string   `json:"id"`
	ChainType string   `json:"chainType"`
	BootNodes []string `json:"bootNodes"`
	Genesis   struct {
		Raw struct {
			Top             map[string]string            `json:"top"`
			ChildrenDefault map[string]map[string]string `json:"childrenDefault"`
		} `json:"raw"`
	} `json:"genesis"`
}

// DetectKind inspects data and reports whether it is a plain or raw
// document. Anything that is not a JSON object with a genesis section is
// rejected.
func DetectKind(data []byte) (Kind, error) {
	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("document is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return 0, fmt.Errorf("document is not a JSON object")
	}
	switch {
	case root.Get("genesis.raw").Exists():
		return Raw, nil
	case root.Get("genesis.runtime").Exists():
		return Plain, nil
	default:
		return 0, fmt.Errorf("document has neither genesis.runtime nor genesis.raw")
	}
}

// ParsePlain decodes and checks a plain document.
func ParsePlain(data []byte) (*PlainSpec, error) {
	kind, err := DetectKind(data)
	if err != nil {
		return nil, err
	}
	if kind != Plain {
		return nil, fmt.Errorf("expected a plain document, got %s", kind)
	}
	var spec PlainSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decoding plain document: %w", err)
	}
	if spec.Name == "" || spec.ID == "" {
		return nil, fmt.Errorf("plain document must carry a name and an id")
	}
	if spec.ProtocolID == nil || *spec.ProtocolID == "" {
		return nil, fmt.Errorf("plain document must carry a protocolId")
	}
	if err := checkProperties(spec.Properties); err != nil {
		return nil, err
	}
	return &spec, nil
}

// checkProperties validates the well-known chain properties when present.
// Unknown properties pass through.
func checkProperties(props map[string]json.RawMessage) error {
	for _, key := range []string{"ss58Format", "tokenDecimals"} {
		v, ok := props[key]
		if !ok {
			continue
		}
		var n uint64
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("property %s must be a non-negative integer, got %s", key, v)
		}
	}
	if v, ok := props["tokenSymbol"]; ok {
		var sym string
		if err := json.Unmarshal(v, &sym); err != nil {
			return fmt.Errorf("property tokenSymbol must be a string, got %s", v)
		}
	}
	return nil
}

// ParseRaw decodes and checks a raw document. Every storage key and value
// must be 0x-prefixed hex.
func ParseRaw(data []byte) (*RawSpec, error) {
	kind, err := DetectKind(data)
	if err != nil {
		return nil, err
	}
	if kind != Raw {
		return nil, fmt.Errorf("expected a raw document, got %s", kind)
	}
	var spec RawSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decoding raw document: %w", err)
	}
	for k, v := range spec.Genesis.Raw.Top {
		if err := checkHex(k); err != nil {
			return nil, fmt.Errorf("storage key %q: %w", k, err)
		}
		if err := checkHex(v); err != nil {
			return nil, fmt.Errorf("storage value for %q: %w", k, err)
		}
	}
	return &spec, nil
}

func checkHex(s string) error {
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("missing 0x prefix")
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return err
	}
	return nil
}
