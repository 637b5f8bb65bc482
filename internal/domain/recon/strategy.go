package recon

import "fmt"

// Strategy selects the matching policy. The set is closed; anything beyond
// these four is a configuration error, caught at parse time.
type Strategy string

const (
	// StrategyExactMatch matches on residual magnitude alone, and only when
	// exactly one open entry has it.
	StrategyExactMatch Strategy = "exact_match"
	// StrategyReferenceMatch matches through the owning document's reference.
	StrategyReferenceMatch Strategy = "reference_match"
	// StrategyPartnerAmount matches on counterparty plus residual magnitude,
	// again requiring exactly one candidate.
	StrategyPartnerAmount Strategy = "partner_amount"
	// StrategySmartMatch tries reference, then partner+amount, then exact.
	StrategySmartMatch Strategy = "smart_match"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyExactMatch, StrategyReferenceMatch, StrategyPartnerAmount, StrategySmartMatch:
		return Strategy(s), nil
	case "":
		return StrategySmartMatch, nil
	default:
		return "", fmt.Errorf("unknown reconcile strategy %q", s)
	}
}

// UnmarshalYAML lets configs carry strategy names and fail fast on typos.
func (s *Strategy) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseStrategy(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
