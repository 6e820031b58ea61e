package pipeline

import (
	"consensuscore/internal/config"
	"consensuscore/internal/consensus"
)

// modelFor resolves a stage to the model id configured in the active
// ConsensusProfile.
func modelFor(profile config.ConsensusProfile, stage consensus.Stage) string {
	switch stage {
	case consensus.StageGenerator:
		return profile.GeneratorModel
	case consensus.StageRefiner:
		return profile.RefinerModel
	case consensus.StageValidator:
		return profile.ValidatorModel
	case consensus.StageCurator:
		return profile.CuratorModel
	default:
		return ""
	}
}
