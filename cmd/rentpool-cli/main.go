package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"rentpool/crypto"
)

var rpcEndpoint = defaultRPCEndpoint()
var rpcAuthToken = os.Getenv("RENTPOOL_RPC_TOKEN")

func main() {
	args := os.Args[1:]
	var err error
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	switch args[0] {
	case "generate-key":
		path := "rentpool.keystore"
		if len(args) > 1 {
			path = args[1]
		}
		generateKey(path)
	case "show-address":
		if len(args) < 2 {
			fmt.Println("Error: please provide a keystore file.")
			printUsage()
			return
		}
		showAddress(args[1])
	case "pool":
		callAndPrint("rental_getPool", map[string]interface{}{}, false)
	case "service":
		index, ok := parseUint(args, 1, "service index")
		if !ok {
			return
		}
		callAndPrint("rental_getService", map[string]interface{}{"index": index}, false)
	case "loan":
		id, ok := parseUint(args, 1, "loan id")
		if !ok {
			return
		}
		callAndPrint("rental_getLoan", map[string]interface{}{"id": id}, false)
	case "position":
		id, ok := parseUint(args, 1, "position id")
		if !ok {
			return
		}
		callAndPrint("rental_getPosition", map[string]interface{}{"id": id}, false)
	case "estimate":
		if len(args) < 4 {
			fmt.Println("Error: please provide a service index, amount and duration.")
			printUsage()
			return
		}
		index, ok := parseUint(args, 1, "service index")
		if !ok {
			return
		}
		duration, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid duration.")
			return
		}
		params := map[string]interface{}{
			"serviceIndex": index,
			"amount":       args[2],
			"durationSecs": duration,
		}
		callAndPrint("rental_estimateLoan", params, false)
	case "transfer-loan":
		if len(args) < 4 {
			fmt.Println("Error: please provide a loan id, the current holder and the recipient.")
			printUsage()
			return
		}
		id, ok := parseUint(args, 1, "loan id")
		if !ok {
			return
		}
		params := map[string]interface{}{
			"loanId": id,
			"from":   args[2],
			"to":     args[3],
		}
		callAndPrint("rental_transferLoan", params, false)
	case "shutdown":
		if len(args) < 2 {
			fmt.Println("Error: please provide the owner address.")
			printUsage()
			return
		}
		callAndPrint("rental_shutdown", map[string]interface{}{"owner": args[1]}, true)
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage()
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func parseUint(args []string, pos int, what string) (uint64, bool) {
	if len(args) <= pos {
		fmt.Printf("Error: please provide a %s.\n", what)
		printUsage()
		return 0, false
	}
	value, err := strconv.ParseUint(args[pos], 10, 64)
	if err != nil {
		fmt.Printf("Error: invalid %s.\n", what)
		return 0, false
	}
	return value, true
}

func generateKey(path string) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Printf("Error generating key: %v\n", err)
		os.Exit(1)
	}

	passphrase, err := readPassphrase(true)
	if err != nil {
		fmt.Printf("Error reading passphrase: %v\n", err)
		os.Exit(1)
	}
	if err := crypto.SaveToKeystore(path, key, passphrase); err != nil {
		fmt.Printf("Error saving keystore: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated new key and saved to %s\n", path)
	fmt.Printf("Your account address is: %s\n", key.PubKey().Address().String())
	fmt.Println("Store the file and passphrase securely; the key cannot be recovered without them.")
}

func showAddress(path string) {
	passphrase, err := readPassphrase(false)
	if err != nil {
		fmt.Printf("Error reading passphrase: %v\n", err)
		os.Exit(1)
	}
	key, err := crypto.LoadFromKeystore(path, passphrase)
	if err != nil {
		fmt.Printf("Error opening keystore %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Println(key.PubKey().Address().String())
}

func readPassphrase(confirm bool) (string, error) {
	if v := os.Getenv("RENTPOOL_KEYSTORE_PASSPHRASE"); v != "" {
		return v, nil
	}
	fmt.Print("Passphrase: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if !confirm {
		return string(first), nil
	}
	fmt.Print("Repeat passphrase: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if !bytes.Equal(first, second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}

func callAndPrint(method string, params interface{}, requireAuth bool) {
	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0", "id": 1, "method": method, "params": []interface{}{params},
	})

	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		fmt.Printf("Error building request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	if requireAuth {
		if rpcAuthToken == "" {
			fmt.Println("Error: privileged call requires RENTPOOL_RPC_TOKEN to be set.")
			os.Exit(1)
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error calling %s: %v\n", rpcEndpoint, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		fmt.Println("Error: failed to decode response from node.")
		os.Exit(1)
	}
	if rpcResp.Error != nil {
		fmt.Printf("Error from node (%d): %s\n", rpcResp.Error.Code, rpcResp.Error.Message)
		os.Exit(1)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, rpcResp.Result, "", "  "); err != nil {
		fmt.Println(string(rpcResp.Result))
		return
	}
	fmt.Println(pretty.String())
}

func printUsage() {
	fmt.Println("Usage: rentpool-cli [--rpc <url>] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  generate-key [path]                 - Generates a key and saves an encrypted keystore (default rentpool.keystore)")
	fmt.Println("  show-address <keystore>             - Prints the account address stored in a keystore file")
	fmt.Println("  pool                                - Shows the pool reserve, share supply and payment tokens")
	fmt.Println("  service <index>                     - Shows a catalog entry")
	fmt.Println("  loan <id>                           - Shows an active loan")
	fmt.Println("  position <id>                       - Shows a liquidity position")
	fmt.Println("  estimate <index> <amount> <seconds> - Prices a loan without opening it")
	fmt.Println("  transfer-loan <id> <from> <to>      - Moves an unmatured loan receipt to a new holder")
	fmt.Println("  shutdown <owner>                    - Permanently shuts the pool down (requires RENTPOOL_RPC_TOKEN)")
	fmt.Println()
	fmt.Println("The RPC endpoint defaults to http://localhost:8545 and can be overridden via RPC_URL or --rpc.")
}
