package parser

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// Rules drives signal extraction: per-category keyword lists plus a regex
// template with a {target_word} placeholder for the keyword alternation.
type Rules struct {
	Keywords map[string][]string `yaml:"keywords"`
	Regex    map[string]string   `yaml:"regex"`
}

type Parser struct {
	orderType *regexp.Regexp
	between   *regexp.Regexp
	targets   *regexp.Regexp
	stopLoss  *regexp.Regexp
	leverage  *regexp.Regexp
	asset     *regexp.Regexp

	maxLeverage int
}

var numberRe = regexp.MustCompile(`\d+\.\d+|\d+`)

// New loads the rules file and compiles the category matchers.
func New(rulesPath string, maxLeverage int) (*Parser, error) {
	raw, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, errors.Wrap(err, "read rules file")
	}

	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, errors.Wrap(err, "decode rules file")
	}

	compile := func(category string) (*regexp.Regexp, error) {
		words, ok := rules.Keywords[category]
		if !ok || len(words) == 0 {
			return nil, errors.Errorf("no keywords for category %s", category)
		}
		tpl, ok := rules.Regex[category]
		if !ok {
			return nil, errors.Errorf("no regex for category %s", category)
		}
		escaped := make([]string, 0, len(words))
		for _, w := range words {
			escaped = append(escaped, regexp.QuoteMeta(w))
		}
		pattern := strings.ReplaceAll(tpl, "{target_word}", strings.Join(escaped, "|"))
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "compile regex for category %s", category)
		}
		return re, nil
	}

	p := &Parser{maxLeverage: maxLeverage}
	if p.orderType, err = compile("order_type"); err != nil {
		return nil, err
	}
	if p.between, err = compile("between"); err != nil {
		return nil, err
	}
	if p.targets, err = compile("targets"); err != nil {
		return nil, err
	}
	if p.stopLoss, err = compile("stop_loss"); err != nil {
		return nil, err
	}
	if p.leverage, err = compile("leverage"); err != nil {
		return nil, err
	}

	assetPattern, ok := rules.Regex["currency_name"]
	if !ok {
		return nil, errors.New("no regex for category currency_name")
	}
	if p.asset, err = regexp.Compile(assetPattern); err != nil {
		return nil, errors.Wrap(err, "compile asset regex")
	}

	return p, nil
}

// Parse extracts a normalized Signal from free-form alert text. The second
// return value is false when the text does not describe a complete trade.
func (p *Parser) Parse(text string) (models.Signal, bool) {
	var sig models.Signal

	if m := p.asset.FindStringSubmatch(text); m != nil {
		sig.Asset = strings.ToUpper(strings.TrimPrefix(m[len(m)-1], "#"))
	}

	sig.Side = models.SideBuy
	if m := p.orderType.FindString(text); m != "" {
		low := strings.ToLower(m)
		if strings.Contains(low, "sell") || strings.Contains(low, "short") {
			sig.Side = models.SideSell
		}
	} else {
		return sig, false
	}

	if m := p.between.FindString(text); m != "" {
		nums := extractNumbers(m)
		if len(nums) >= 2 {
			sig.Between = nums[:2]
		}
	}

	if m := p.targets.FindString(text); m != "" {
		sig.Targets = extractNumbers(m)
	}

	if m := p.stopLoss.FindString(text); m != "" {
		if nums := extractNumbers(m); len(nums) > 0 {
			sig.StopLoss = nums[0]
		}
	}

	sig.Leverage = p.parseLeverage(text)

	if !sig.Complete() {
		logger.Info("message is not a trade signal")
		return sig, false
	}
	return sig, true
}

// parseLeverage takes the highest number of a leverage phrase ("10x-20x"),
// clamped to the configured cap. No leverage mention means 1x.
func (p *Parser) parseLeverage(text string) int {
	m := p.leverage.FindString(text)
	if m == "" {
		return 1
	}
	max := 0
	for _, s := range regexp.MustCompile(`\d+`).FindAllString(m, -1) {
		if n, err := strconv.Atoi(s); err == nil && n > max {
			max = n
		}
	}
	if max == 0 {
		return 1
	}
	if max > p.maxLeverage {
		return p.maxLeverage
	}
	return max
}

func extractNumbers(s string) []decimal.Decimal {
	matches := numberRe.FindAllString(s, -1)
	out := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		d, err := decimal.NewFromString(m)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
