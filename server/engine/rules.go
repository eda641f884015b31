package engine

import "fmt"

// Rules holds the engine-defined preconditions the ledger enforces on top of
// the balance floor.
type Rules struct {
	ExchangeStep       int  `yaml:"exchange_step" json:"exchange_step"` // 0 = any signed delta
	RequireCarrotField bool `yaml:"require_carrot_field" json:"require_carrot_field"`
	RequireSaladField  bool `yaml:"require_salad_field" json:"require_salad_field"`
	SaladBonusLead     int  `yaml:"salad_bonus_lead" json:"salad_bonus_lead"`
	SaladBonusTrail    int  `yaml:"salad_bonus_trail" json:"salad_bonus_trail"`
}

func DefaultRules() Rules {
	return Rules{SaladBonusLead: 10, SaladBonusTrail: 30}
}

// HaseRules are the tournament rules: carrots are traded in steps of ten
// while standing on a carrots field.
func HaseRules() Rules {
	return Rules{
		ExchangeStep:       10,
		RequireCarrotField: true,
		RequireSaladField:  true,
		SaladBonusLead:     10,
		SaladBonusTrail:    30,
	}
}

func RulesPreset(name string) (Rules, error) {
	switch name {
	case "", "default":
		return DefaultRules(), nil
	case "hase":
		return HaseRules(), nil
	}
	return Rules{}, fmt.Errorf("unknown rules preset %q", name)
}

func (r Rules) Validate() error {
	if r.ExchangeStep < 0 {
		return fmt.Errorf("exchange_step must be >= 0, got %d", r.ExchangeStep)
	}
	if r.SaladBonusLead < 0 || r.SaladBonusTrail < 0 {
		return fmt.Errorf("salad bonuses must be >= 0")
	}
	return nil
}
