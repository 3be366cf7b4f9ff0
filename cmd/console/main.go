package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/defistate/defistate-maker-go/api"
	"github.com/defistate/defistate-maker-go/cmd/maker/config"
	"github.com/defistate/defistate-maker-go/protocols/tokenregistry/indexer"
	"github.com/defistate/defistate-maker-go/streams/jsonrpc/client"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"

	DefaultNotificationBufferSize = 100
	recentNotifications           = 20
	callTimeout                   = 10 * time.Second
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

// SafeLog is a thread-safe, append-only record of received notifications.
type SafeLog struct {
	mu      sync.RWMutex
	entries []client.Notification
}

func (s *SafeLog) Append(n client.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, n)
}

// Since returns the notifications from position i on.
func (s *SafeLog) Since(i int) []client.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i >= len(s.entries) {
		return nil
	}
	return append([]client.Notification(nil), s.entries[i:]...)
}

func (s *SafeLog) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// console holds what the command handlers share.
type console struct {
	rpc    *rpc.Client
	tokens indexer.IndexedTokenSystem
	// target follows LogSetTargetAsset notifications.
	target atomic.Pointer[common.Address]
	log    *SafeLog
	reader *bufio.Reader
}

func main() {
	// --- 1. SETUP LOGGING (To File) ---
	logFile, err := os.OpenFile("console.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Failed to open log file: %v", err))
	}
	defer logFile.Close()

	rootLogger := slog.New(slog.NewJSONHandler(logFile, nil))

	closeApp := func() {
		fmt.Println("\n" + Red + "Fatal error occurred. Check console.log for details." + Reset)
		os.Exit(1)
	}

	// --- 2. CONFIG & CONTEXT ---
	cfg, err := loadConfig()
	if err != nil {
		rootLogger.Error("Failed to load configuration", "error", err)
		closeApp()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := "ws://" + cfg.RPCAddr

	// --- 3. INITIALIZE CLIENTS ---
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		rootLogger.Error("Failed to dial maker", "url", url, "error", err)
		closeApp()
	}
	defer rpcClient.Close()

	stream, err := client.NewClient(ctx, client.Config{
		URL:        url,
		Logger:     rootLogger.With("component", "jsonrpc-client"),
		BufferSize: DefaultNotificationBufferSize,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize log stream", "error", err)
		closeApp()
	}

	// --- 4. START CONSOLE & NOTIFICATION LOOP ---
	tokens := cfg.Index()
	target, err := tokens.Resolve(cfg.Maker.TargetAsset)
	if err != nil {
		rootLogger.Error("Failed to resolve target asset", "error", err)
		closeApp()
	}
	c := &console{
		rpc:    rpcClient,
		tokens: tokens,
		log:    &SafeLog{},
		reader: bufio.NewReader(os.Stdin),
	}
	c.target.Store(&target.Address)

	fmt.Println(Green + "Starting Maker Console..." + Reset)
	fmt.Println("Logs are being written to 'console.log'")
	go c.run(ctx)

	for {
		select {
		case n := <-stream.Notifications():
			if n.Name == "LogSetTargetAsset" && n.Address != nil {
				c.target.Store(n.Address)
			}
			c.log.Append(n)

		case err, ok := <-stream.Err():
			if ok {
				rootLogger.Error("Fatal stream error", "error", err)
				closeApp()
			}
			return

		case <-ctx.Done():
			fmt.Println("\n" + Yellow + "Shutting down..." + Reset)
			return
		}
	}
}

// run handles user input and display.
func (c *console) run(ctx context.Context) {
	time.Sleep(500 * time.Millisecond)

	for {
		if ctx.Err() != nil {
			return
		}

		printMenu()

		fmt.Print(Bold + "Enter selection: " + Reset)
		input, err := c.reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			continue
		}

		c.handleCommand(ctx, strings.TrimSpace(input))

		fmt.Println("\n" + Gray + "[Press Enter to continue]" + Reset)
		c.reader.ReadString('\n')
	}
}

func printMenu() {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(Bold + "MAKER CONSOLE" + Reset + Gray + " | v0.1.0" + Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s1.%s Maker Settings\n", Cyan, Reset)
	fmt.Printf(" %s2.%s Recent Notifications\n", Cyan, Reset)
	fmt.Printf(" %s3.%s Bridge For %s(by Symbol/Address)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s4.%s Balance Of %s(Token, Account)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s5.%s Convert    %s(Token Pairs)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s6.%s Watch      %s(Live Notifications)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s7.%s Quote      %s(Token In, Token Out, Amount)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s8.%s Tokens\n", Cyan, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %sh.%s Help\n", Yellow, Reset)
	fmt.Printf(" %sq.%s Quit\n", Red, Reset)
	fmt.Println("")
}

func (c *console) handleCommand(ctx context.Context, input string) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	switch input {
	case "1":
		c.printSettings(ctx)
	case "2":
		c.printRecent()
	case "3":
		c.bridgeFor(ctx)
	case "4":
		c.balanceOf(ctx)
	case "5":
		c.convert(ctx)
	case "6":
		c.watch()
	case "7":
		c.quote(ctx)
	case "8":
		c.printTokens()
	case "h":
		printHelp()
	case "q":
		exitConsole()
	default:
		fmt.Println(Red + "Unknown command." + Reset)
	}
}

// --- COMMAND HANDLERS ---

func printHelp() {
	fmt.Print("\033[H\033[2J")

	header("MAKER")
	fmt.Println("The maker converts the treasury it holds (loose tokens and liquidity")
	fmt.Println("positions) into the " + Yellow + "target asset" + Reset + " and splits it between the")
	fmt.Println("dev address and the staking address.")
	fmt.Println("")
	fmt.Println(Bold + "ROUTING" + Reset)
	fmt.Println("   Each token is swapped towards its " + Cyan + "bridge" + Reset + " (the base asset unless")
	fmt.Println("   configured) until the target is reached. Every swap passes a round-trip")
	fmt.Println("   slippage check against the pool.")
	fmt.Println("")
	fmt.Println(Bold + "ACCESS" + Reset)
	fmt.Println("   Conversions need an authorized caller. Configuration needs the owner.")
	fmt.Println(Gray + "---------------------------------------------------------------" + Reset)
}

func (c *console) printSettings(ctx context.Context) {
	var (
		owner, target, devAddr common.Address
		devCut                 uint16
		count                  hexutil.Uint
	)
	batch := []rpc.BatchElem{
		{Method: "maker_owner", Result: &owner},
		{Method: "maker_targetAsset", Result: &target},
		{Method: "maker_devAddr", Result: &devAddr},
		{Method: "maker_devCut", Result: &devCut},
		{Method: "maker_authorizedCount", Result: &count},
	}
	if err := c.batch(ctx, batch); err != nil {
		printError(err)
		return
	}

	header("MAKER SETTINGS")
	fmt.Printf(" %s%-12s%s %s\n", Gray, "Owner:", Reset, owner.Hex())
	fmt.Printf(" %s%-12s%s %s\n", Gray, "Target:", Reset, c.label(target))
	fmt.Printf(" %s%-12s%s %s\n", Gray, "Dev:", Reset, devAddr.Hex())
	fmt.Printf(" %s%-12s%s %d bps\n", Gray, "Dev cut:", Reset, devCut)

	header(fmt.Sprintf("AUTHORIZED (%d)", count))
	for i := 0; i < int(count); i++ {
		var addr common.Address
		if err := c.rpc.CallContext(ctx, &addr, "maker_authorizedAt", hexutil.Uint(i)); err != nil {
			printError(err)
			return
		}
		fmt.Printf(" %d. %s\n", i, addr.Hex())
	}
}

func (c *console) printRecent() {
	total := c.log.Len()
	from := max(total-recentNotifications, 0)

	header(fmt.Sprintf("NOTIFICATIONS (%d of %d)", total-from, total))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "INDEX\tEVENT\tDETAILS\t")
	fmt.Fprintln(w, "-----\t-----\t-------\t")
	for _, n := range c.log.Since(from) {
		fmt.Fprintf(w, "%d\t%s\t%s\t\n", n.Log.Index, n.Name, c.describe(n))
	}
	w.Flush()
}

func (c *console) bridgeFor(ctx context.Context) {
	token, ok := c.readToken("[Bridge For] Enter Token (Symbol or Address): ")
	if !ok {
		return
	}
	var bridge common.Address
	if err := c.rpc.CallContext(ctx, &bridge, "maker_bridgeFor", token); err != nil {
		printError(err)
		return
	}
	fmt.Printf("\n%s%s%s bridges to %s%s%s\n", Bold, c.label(token), Reset, Green, c.label(bridge), Reset)
}

func (c *console) balanceOf(ctx context.Context) {
	token, ok := c.readToken("[Balance Of] Enter Token (Symbol or Address): ")
	if !ok {
		return
	}
	account, ok := c.readAddress("[Balance Of] Enter Account Address: ")
	if !ok {
		return
	}
	var balance hexutil.Big
	if err := c.rpc.CallContext(ctx, &balance, "maker_balanceOf", token, account); err != nil {
		printError(err)
		return
	}
	fmt.Printf("\n%s%s%s\n", Bold, c.amount(token, balance.ToInt()), Reset)
}

func (c *console) convert(ctx context.Context) {
	from, ok := c.readAddress("[Convert] Caller Address: ")
	if !ok {
		return
	}
	fmt.Print(Bold + "[Convert] Pairs (e.g. USDC/WETH DAI/DAI): " + Reset)
	input, _ := c.reader.ReadString('\n')

	var token0s, token1s []common.Address
	for _, field := range strings.Fields(input) {
		refs := strings.SplitN(field, "/", 2)
		if len(refs) != 2 {
			fmt.Printf(Red+"[ERROR] %q is not a token pair%s\n", field, Reset)
			return
		}
		t0, err := c.tokens.Resolve(refs[0])
		if err != nil {
			printError(err)
			return
		}
		t1, err := c.tokens.Resolve(refs[1])
		if err != nil {
			printError(err)
			return
		}
		token0s = append(token0s, t0.Address)
		token1s = append(token1s, t1.Address)
	}
	if len(token0s) == 0 {
		return
	}

	fmt.Print(Bold + "[Convert] Slippage (bps): " + Reset)
	raw, _ := c.reader.ReadString('\n')
	slippage, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 16)
	if err != nil {
		printError(err)
		return
	}

	var results []api.ConvertResult
	err = c.rpc.CallContext(ctx, &results, "maker_convertMultiple", api.CallArgs{From: from}, token0s, token1s, uint16(slippage))
	if err != nil {
		printError(err)
		return
	}

	header("CONVERTED")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "AMOUNT0\tAMOUNT1\tTARGET OUT\tHOPS\t")
	fmt.Fprintln(w, "-------\t-------\t----------\t----\t")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t\n",
			c.amount(r.Token0, r.Amount0.ToInt()), c.amount(r.Token1, r.Amount1.ToInt()),
			c.amount(*c.target.Load(), r.TargetOut.ToInt()), r.Hops)
	}
	w.Flush()
}

// quote prices the amount both ways against the pair's current reserves:
// selling it in tokenIn units and buying it in tokenOut units.
func (c *console) quote(ctx context.Context) {
	tokenIn, ok := c.readToken("[Quote] Token In (Symbol or Address): ")
	if !ok {
		return
	}
	tokenOut, ok := c.readToken("[Quote] Token Out (Symbol or Address): ")
	if !ok {
		return
	}
	fmt.Print("\n" + Bold + "[Quote] Amount (whole tokens): " + Reset)
	raw, _ := c.reader.ReadString('\n')

	in, _ := c.tokens.GetByAddress(tokenIn)
	out, _ := c.tokens.GetByAddress(tokenOut)
	sell, err := in.ParseAmount(raw)
	if err != nil {
		printError(err)
		return
	}
	buy, err := out.ParseAmount(raw)
	if err != nil {
		printError(err)
		return
	}

	var received, paid hexutil.Big
	batch := []rpc.BatchElem{
		{Method: "maker_quoteOut", Args: []any{tokenIn, tokenOut, (*hexutil.Big)(sell)}, Result: &received},
		{Method: "maker_quoteIn", Args: []any{tokenIn, tokenOut, (*hexutil.Big)(buy)}, Result: &paid},
	}
	if err := c.batch(ctx, batch); err != nil {
		printError(err)
		return
	}

	header("QUOTE")
	fmt.Printf(" %s%-6s%s %s -> %s%s%s\n", Gray, "Sell", Reset, c.amount(tokenIn, sell), Green, c.amount(tokenOut, received.ToInt()), Reset)
	fmt.Printf(" %s%-6s%s %s -> %s%s%s\n", Gray, "Buy", Reset, c.amount(tokenIn, paid.ToInt()), Green, c.amount(tokenOut, buy), Reset)
	if in.HasTransferTax() || out.HasTransferTax() {
		fmt.Println(Yellow + " Transfer taxes are not included." + Reset)
	}
}

func (c *console) printTokens() {
	header("TOKENS")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tADDRESS\tDECIMALS\tTRANSFER TAX\t")
	fmt.Fprintln(w, "------\t-------\t--------\t------------\t")
	for _, t := range c.tokens.All() {
		tax := "-"
		if t.HasTransferTax() {
			tax = fmt.Sprintf("%d bps", t.TransferTaxBps)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t\n", t.Symbol, t.Address.Hex(), t.Decimals, tax)
	}
	w.Flush()
}

func (c *console) watch() {
	fmt.Println(Green + "Starting Live Watch... (Press 'Enter' to stop)" + Reset)

	stopCh := make(chan struct{})
	go func() {
		c.reader.ReadString('\n')
		close(stopCh)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	seen := c.log.Len()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			for _, n := range c.log.Since(seen) {
				seen++
				fmt.Printf("%s#%d%s %s%s%s %s\n", Gray, n.Log.Index, Reset, Bold, n.Name, Reset, c.describe(n))
			}
		}
	}
}

// --- HELPERS ---

func (c *console) batch(ctx context.Context, batch []rpc.BatchElem) error {
	if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
		return err
	}
	for _, elem := range batch {
		if elem.Error != nil {
			return fmt.Errorf("%s: %w", elem.Method, elem.Error)
		}
	}
	return nil
}

// describe renders a notification's payload.
func (c *console) describe(n client.Notification) string {
	switch {
	case n.Convert != nil:
		r := n.Convert
		return fmt.Sprintf("%s + %s -> %s (by %s)",
			c.amount(r.Token0, r.Amount0), c.amount(r.Token1, r.Amount1), c.amount(*c.target.Load(), r.AmountTarget), r.Server.Hex())
	case n.BridgeSet != nil:
		r := n.BridgeSet
		return fmt.Sprintf("%s: %s -> %s", c.label(r.Token), c.label(r.OldBridge), c.label(r.Bridge))
	case n.DevCut != nil:
		return fmt.Sprintf("%d bps", *n.DevCut)
	case n.Ownership != nil:
		return fmt.Sprintf("%s -> %s", n.Ownership[0].Hex(), n.Ownership[1].Hex())
	case n.Address != nil:
		return c.label(*n.Address)
	}
	return ""
}

// amount renders x in whole tokens when token is known, else in base units.
func (c *console) amount(token common.Address, x *big.Int) string {
	if t, ok := c.tokens.GetByAddress(token); ok {
		return t.FormatAmount(x) + " " + c.label(token)
	}
	return x.String() + " " + c.label(token)
}

// label prefers a token's symbol over its address.
func (c *console) label(addr common.Address) string {
	if t, ok := c.tokens.GetByAddress(addr); ok && t.Symbol != "" {
		return t.Symbol
	}
	if addr == (common.Address{}) {
		return "-"
	}
	return addr.Hex()
}

func (c *console) readToken(prompt string) (common.Address, bool) {
	fmt.Print("\n" + Bold + prompt + Reset)
	input, _ := c.reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, false
	}
	t, err := c.tokens.Resolve(input)
	if err != nil {
		printError(err)
		return common.Address{}, false
	}
	return t.Address, true
}

func (c *console) readAddress(prompt string) (common.Address, bool) {
	fmt.Print("\n" + Bold + prompt + Reset)
	input, _ := c.reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		fmt.Printf(Red+"[ERROR] Invalid address: %q%s\n", input, Reset)
		return common.Address{}, false
	}
	return common.HexToAddress(input), true
}

func printError(err error) {
	fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
}

func exitConsole() {
	fmt.Println(Yellow + "Exiting..." + Reset)
	os.Exit(0)
}

func loadConfig() (*config.MakerConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the maker configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
