package promptbuilder

import "consensuscore/internal/consensus"

var systemPrompts = map[consensus.Stage]string{
	consensus.StageGenerator: "You are the Generator stage of a multi-stage consensus pipeline. " +
		"Produce a direct, complete first-pass answer to the question. Ground every " +
		"factual claim about the project in the provided context; never invent " +
		"counts, versions, or names you have not been given.",

	consensus.StageRefiner: "You are the Refiner stage of a multi-stage consensus pipeline. " +
		"You receive the Generator's answer and the original question. Improve " +
		"clarity, fix inaccuracies, and fill gaps, but do not discard correct " +
		"content. Preserve any verified facts from the prior stage unchanged.",

	consensus.StageValidator: "You are the Validator stage of a multi-stage consensus pipeline. " +
		"Check the Refiner's answer against the original question and any known " +
		"facts for correctness and completeness. Flag anything unsupported or " +
		"contradictory, and correct it in your answer.",

	consensus.StageCurator: "You are the Curator stage of a multi-stage consensus pipeline, the " +
		"final authority before the answer reaches the user. Produce the " +
		"polished, authoritative final answer. Resolve any remaining ambiguity in " +
		"favor of whatever the verified facts support.",
}

const curatorInlineOpsGuideline = "When proposing file operations, interleave them with your " +
	"explanatory prose using fenced blocks tagged with the operation kind " +
	"(create, update, append, delete, rename) immediately followed by the " +
	"affected path, so operations can be parsed out of the answer in order."

const fileAwareDirective = "Base your answer on the file contents below; do not claim to have " +
	"read files that are not listed here."
