// Package setup runs the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/walletbot/config"
	"github.com/vadiminshakov/walletbot/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is where the wizard writes its result.
const DefaultConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers are the values collected by the wizard.
type Answers struct {
	Platform        string
	QuoteCurrency   string
	MinDisplayValue string
	TimeInForce     string
	PercentPolicy   string
	MaxDeviation    string
	PaperBalances   string
	SessionTTL      string
	WebhookURL      string
	AllowedUsers    string
}

func defaultAnswers() Answers {
	return Answers{
		Platform:        config.PlatformPaper,
		QuoteCurrency:   "USDT",
		MinDisplayValue: "1",
		TimeInForce:     string(domain.TimeInForceGTC),
		PercentPolicy:   string(domain.PercentPolicyReject),
		MaxDeviation:    "0",
		PaperBalances:   "USDT:1000",
		SessionTTL:      "15m",
	}
}

func screen(step string) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("WALLETBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and returns the written config path.
func RunTUI() (string, error) {
	a := defaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("WALLETBOT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Secrets stay in the environment (.env), not in this file.\n"))

	// platform
	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Paper trading", config.PlatformPaper),
				).
				Value(&a.Platform),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// wallet
	screen("STEP 2: WALLET")
	fields := []huh.Field{
		huh.NewInput().
			Title("Quote Currency").
			Description("Currency used for valuation (e.g. USDT)").
			Value(&a.QuoteCurrency).
			Validate(validateTicker),
		huh.NewInput().
			Title("Minimum Display Value").
			Description("Assets worth less are hidden from the wallet").
			Value(&a.MinDisplayValue).
			Validate(validateNonNegative),
	}
	if a.Platform == config.PlatformPaper {
		fields = append(fields, huh.NewInput().
			Title("Paper Balances").
			Description("ASSET:AMOUNT pairs, comma separated (e.g. USDT:1000,BTC:0.1)").
			Value(&a.PaperBalances).
			Validate(validateBalances))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return "", err
	}

	// orders
	screen("STEP 3: ORDERS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Limit Order Time In Force").
				Options(
					huh.NewOption("Good till cancelled", string(domain.TimeInForceGTC)),
					huh.NewOption("Immediate or cancel", string(domain.TimeInForceIOC)),
					huh.NewOption("Fill or kill", string(domain.TimeInForceFOK)),
				).
				Value(&a.TimeInForce),
			huh.NewSelect[string]().
				Title("Percent Above 100").
				Options(
					huh.NewOption("Reject", string(domain.PercentPolicyReject)),
					huh.NewOption("Cap at 100%", string(domain.PercentPolicyCap)),
				).
				Value(&a.PercentPolicy),
			huh.NewInput().
				Title("Max Limit Price Deviation %").
				Description("Distance from last price, 0 disables the check").
				Value(&a.MaxDeviation).
				Validate(validateNonNegative),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// telegram
	screen("STEP 4: TELEGRAM")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Session Idle Timeout").
				Description("Duration string (e.g. 5m, 15m)").
				Value(&a.SessionTTL).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewInput().
				Title("Webhook URL").
				Description("Leave empty to use long polling").
				Value(&a.WebhookURL),
			huh.NewInput().
				Title("Allowed User IDs").
				Description("Comma separated, required for real exchanges").
				Value(&a.AllowedUsers).
				Validate(func(s string) error {
					return validateAllowedUsers(a.Platform, s)
				}),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// confirmation
	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Platform: %s\nQuote: %s\nTime in force: %s\nSession TTL: %s\n",
		a.Platform, a.QuoteCurrency, a.TimeInForce, a.SessionTTL,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	if err := Write(DefaultConfigFile, a); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", DefaultConfigFile)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return DefaultConfigFile, nil
}

// Write converts answers into a YAML config file.
func Write(path string, a Answers) error {
	cfgTmp, err := a.configTmp()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func (a Answers) configTmp() (config.ConfigTmp, error) {
	ttl, err := time.ParseDuration(a.SessionTTL)
	if err != nil {
		return config.ConfigTmp{}, fmt.Errorf("invalid session ttl: %w", err)
	}
	if err := validateAllowedUsers(a.Platform, a.AllowedUsers); err != nil {
		return config.ConfigTmp{}, err
	}
	users, err := parseUsers(a.AllowedUsers)
	if err != nil {
		return config.ConfigTmp{}, err
	}

	cfgTmp := config.ConfigTmp{
		Platform:               a.Platform,
		QuoteCurrency:          strings.ToUpper(a.QuoteCurrency),
		MinDisplayValue:        a.MinDisplayValue,
		TimeInForce:            a.TimeInForce,
		PercentPolicy:          a.PercentPolicy,
		LimitPriceMaxDeviation: a.MaxDeviation,
		SessionTTL:             ttl,
		WebhookURL:             a.WebhookURL,
		AllowedUsers:           users,
	}

	if a.Platform == config.PlatformPaper {
		cfgTmp.PaperBalances, err = parseBalances(a.PaperBalances)
		if err != nil {
			return config.ConfigTmp{}, err
		}
	}
	return cfgTmp, nil
}

func validateTicker(s string) error {
	if s == "" {
		return fmt.Errorf("currency cannot be empty")
	}
	if !domain.ValidTicker(strings.ToUpper(s)) {
		return fmt.Errorf("currency must be letters and digits only")
	}
	return nil
}

func validateNonNegative(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateBalances(s string) error {
	_, err := parseBalances(s)
	return err
}

func validateUsers(s string) error {
	_, err := parseUsers(s)
	return err
}

func validateAllowedUsers(platform, s string) error {
	users, err := parseUsers(s)
	if err != nil {
		return err
	}
	if platform != config.PlatformPaper && len(users) == 0 {
		return fmt.Errorf("list at least one user id for a real exchange")
	}
	return nil
}

func parseBalances(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid balance %q, expected ASSET:AMOUNT", item)
		}
		if err := validateNonNegative(parts[1]); err != nil {
			return nil, fmt.Errorf("invalid amount for %s: %w", parts[0], err)
		}
		out[strings.ToUpper(parts[0])] = parts[1]
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one balance is required")
	}
	return out, nil
}

func parseUsers(s string) ([]int64, error) {
	var out []int64
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", item)
		}
		out = append(out, id)
	}
	return out, nil
}
