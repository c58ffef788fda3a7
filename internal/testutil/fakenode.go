package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// FakeNodeEnv switches a test binary into fake node mode. Test packages
// that need an executable re-run their own binary with this variable set
// and call FakeNodeMain from TestMain.
const FakeNodeEnv = "GENESISFORGE_FAKE_NODE"

// IsFakeNode reports whether the current process runs as the fake node.
func IsFakeNode() bool {
	return os.Getenv(FakeNodeEnv) == "1"
}

// FakeNodeEnvMap is the environment to hand to generators and converters
// that execute the fake node.
func FakeNodeEnvMap() map[string]string {
	return map[string]string{FakeNodeEnv: "1"}
}

// FakeNodeMain implements the node's `build-spec` surface: presets dev,
// local and staging, spec files given by path, --raw conversion and
// --disable-default-bootnode. The preset "garbage" prints non-JSON and
// "broken" exits non-zero. It returns the process exit code.
func FakeNodeMain(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "build-spec" {
		fmt.Fprintln(stderr, "Error: unknown subcommand")
		return 2
	}
	var chain string
	var raw, noBoot bool
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--chain":
			i++
			if i < len(args) {
				chain = args[i]
			}
		case "--raw":
			raw = true
		case "--disable-default-bootnode":
			noBoot = true
		}
	}

	var spec map[string]any
	switch chain {
	case "dev", "local", "staging", "subsocial":
		spec = fakePlain(chain, noBoot)
	case "garbage":
		fmt.Fprintln(stdout, "Building chain spec")
		return 0
	case "broken":
		fmt.Fprintln(stderr, `Error: Input("Error opening spec file: No such file or directory")`)
		return 1
	default:
		data, err := os.ReadFile(chain)
		if err != nil {
			fmt.Fprintf(stderr, "Error: Input(%q)\n", err.Error())
			return 1
		}
		if err := json.Unmarshal(data, &spec); err != nil {
			fmt.Fprintf(stderr, "Error: Input(%q)\n", err.Error())
			return 1
		}
	}

	if raw {
		spec = toRaw(spec)
	}
	out, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

const fakeAccount = "3rJPiWW6VqUkcUcP6rE6DjfaRHZ8jkPFwpJ6BrAxCcbn4UE5"

func fakePlain(chain string, noBoot bool) map[string]any {
	bootNodes := []any{}
	if !noBoot {
		bootNodes = append(bootNodes, "/ip4/127.0.0.1/tcp/30333/p2p/12D3KooWEyoppNCUx8Yx66oV9fJnriXwCcXwDDUA2kj6vnc6iDEp")
	}
	runtime := map[string]any{
		"frame_system":  map[string]any{"code": "0x0061736d"},
		"pallet_sudo":   map[string]any{"key": fakeAccount},
		"pallet_utils":  map[string]any{"treasuryAccount": fakeAccount},
		"pallet_spaces": map[string]any{"endowedAccount": fakeAccount},
	}
	return map[string]any{
		"name":               "Subsocial",
		"id":                 chain,
		"chainType":          "Live",
		"bootNodes":          bootNodes,
		"telemetryEndpoints": nil,
		"protocolId":         "sub",
		"properties":         map[string]any{"ss58Format": 28, "tokenDecimals": 12, "tokenSymbol": "SUB"},
		"consensusEngine":    nil,
		"genesis":            map[string]any{"runtime": runtime},
	}
}

// toRaw keys each runtime section by a digest of its name and stores the
// section's JSON as the value.
func toRaw(plain map[string]any) map[string]any {
	genesis, _ := plain["genesis"].(map[string]any)
	runtime, _ := genesis["runtime"].(map[string]any)
	top := map[string]any{}
	for section, v := range runtime {
		key := sha256.Sum256([]byte(section))
		value, _ := json.Marshal(v)
		top["0x"+hex.EncodeToString(key[:])] = "0x" + hex.EncodeToString(value)
	}
	out := make(map[string]any, len(plain))
	for k, v := range plain {
		out[k] = v
	}
	out["genesis"] = map[string]any{
		"raw": map[string]any{"top": top, "childrenDefault": map[string]any{}},
	}
	return out
}
