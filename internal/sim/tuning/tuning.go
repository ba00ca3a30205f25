package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules carries every balance constant of the match engine. Defaults
// reproduce the shipped configs/tuning.yaml so tests and embedded use
// never require the file.
type Rules struct {
	MapSize       int `yaml:"map_size"`
	MaxTurns      int `yaml:"max_turns"`
	InitialEnergy int `yaml:"initial_energy"`

	UnitHealth    int `yaml:"unit_health"`
	UnitMaxHealth int `yaml:"unit_max_health"`

	CostHarvester int `yaml:"cost_harvester"`
	CostWarrior   int `yaml:"cost_warrior"`
	CostScout     int `yaml:"cost_scout"`

	CostDecoherenceField int `yaml:"cost_decoherence_field"`
	CostBarrier          int `yaml:"cost_barrier"`
	CostGate             int `yaml:"cost_gate"`
	CostEntanglementZone int `yaml:"cost_entanglement_zone"`

	HarvestRateHarvester int `yaml:"harvest_rate_harvester"`
	HarvestRateScout     int `yaml:"harvest_rate_scout"`

	NodeMinEnergy int `yaml:"node_min_energy"`
	NodeMaxEnergy int `yaml:"node_max_energy"`

	AttackCost        int `yaml:"attack_cost"`
	BaseDamage        int `yaml:"base_damage"`
	AttackRange       int `yaml:"attack_range"`
	BoostedRange      int `yaml:"boosted_range"`
	QuantumMoveCost   int `yaml:"quantum_move_cost"`
	ZoneInitialPower  int `yaml:"zone_initial_power"`
	ZoneBoostDrain    int `yaml:"zone_boost_drain"`
	ZoneBoostAttacks  int `yaml:"zone_boost_attacks"`
	GateHealCost      int `yaml:"gate_heal_cost"`
	GateHealAmount    int `yaml:"gate_heal_amount"`
	GateTeleportCost  int `yaml:"gate_teleport_cost"`

	ExploreRangeHarvester int `yaml:"explore_range_harvester"`
	ExploreRangeWarrior   int `yaml:"explore_range_warrior"`
	ExploreRangeScout     int `yaml:"explore_range_scout"`
}

func Default() Rules {
	return Rules{
		MapSize:       12,
		MaxTurns:      1000,
		InitialEnergy: 100,

		UnitHealth:    45,
		UnitMaxHealth: 300,

		CostHarvester: 10,
		CostWarrior:   100,
		CostScout:     10,

		CostDecoherenceField: 100,
		CostBarrier:          200,
		CostGate:             100,
		CostEntanglementZone: 100,

		HarvestRateHarvester: 2,
		HarvestRateScout:     1,

		NodeMinEnergy: 1000,
		NodeMaxEnergy: 2000,

		AttackCost:       15,
		BaseDamage:       15,
		AttackRange:      1,
		BoostedRange:     4,
		QuantumMoveCost:  100,
		ZoneInitialPower: 200,
		ZoneBoostDrain:   50,
		ZoneBoostAttacks: 2,
		GateHealCost:     50,
		GateHealAmount:   50,
		GateTeleportCost: 25,

		ExploreRangeHarvester: 1,
		ExploreRangeWarrior:   1,
		ExploreRangeScout:     3,
	}
}

// Load overlays the yaml file at path onto the defaults.
func Load(path string) (Rules, error) {
	r := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("tuning.yaml: %w", err)
	}
	return r, nil
}

// Digest is a stable fingerprint of the rules, surfaced in WELCOME so
// agents can detect a balance change.
func (r Rules) Digest() string {
	b, err := yaml.Marshal(r)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
