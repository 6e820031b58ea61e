package factcheck

import (
	"regexp"
	"strings"
)

// claimPatterns is the fixed registry of one regex per ClaimType. Each
// match's first non-empty capture group becomes the claim value at a fixed
// confidence of 0.8.
// ClaimProjectName has three alternatives: "project is/called/named X", the
// common "X project" phrasing (name immediately preceding the keyword), and
// "X version 1.2.3" (name immediately preceding a version number, with no
// keyword anywhere). A connector-word pattern alone misses the latter two,
// which is how names are phrased in most natural-language stage answers.
// RE2 has no lookbehind, so the bare "X project"/"X version" alternatives
// also match filler words like "enterprise project"; those are weeded out
// by nameClaimStopwords below rather than in the pattern.
var claimPatterns = map[ClaimType]*regexp.Regexp{
	ClaimProjectName:       regexp.MustCompile(`(?i)(?:(?:project|package|crate|module)\s+(?:name\s+)?(?:is|called|named)\s+([a-zA-Z][\w-]*))|(?:\b([a-zA-Z][\w-]*)\s+(?:project|package|crate|module)\b)|(?:\b([a-zA-Z][\w-]*)\s+version\s+\d+\.\d+\.\d+)`),
	ClaimVersion:           regexp.MustCompile(`(?i)version\s+(?:is\s+)?(\d+\.\d+\.\d+(?:-[a-zA-Z0-9]+)?)`),
	ClaimDependencyCount:   regexp.MustCompile(`(?i)(\d+)\s+(?:external\s+)?dependencies`),
	ClaimModuleCount:       regexp.MustCompile(`(?i)(\d+)\s+modules`),
	ClaimFileCount:         regexp.MustCompile(`(?i)(\d+)\s+(?:total\s+)?files`),
	ClaimLinesOfCode:       regexp.MustCompile(`(?i)(\d+)\s+lines\s+of\s+code`),
	ClaimProjectComplexity: regexp.MustCompile(`(?i)(?:this is|it'?s|the project is)\s+(?:a|an)?\s*(minimal|simple|basic|enterprise|complex|large)`),
}

// nameClaimStopwords lists words the bare "<word> project"/"<word> version"
// alternatives can capture that are never a project name: the complexity
// vocabulary (those are ClaimProjectComplexity's business), the structural
// nouns themselves, and determiners/fillers that commonly precede them.
var nameClaimStopwords = map[string]bool{
	"minimal": true, "simple": true, "basic": true,
	"enterprise": true, "complex": true, "large": true,
	"project": true, "package": true, "crate": true, "module": true,
	"version": true,
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"its": true, "new": true, "same": true, "entire": true, "whole": true,
	"small": true, "big": true, "open": true,
}

// extractClaims runs every registered pattern against answer and returns one
// FactClaim per match. Claim types with no registered pattern (FileExtension,
// Directory) never produce claims — they exist in the ClaimType enum for
// completeness with the Contradiction rules' "unhandled types pass" clause.
func extractClaims(answer string) []FactClaim {
	var claims []FactClaim
	for claimType, pattern := range claimPatterns {
		for _, match := range pattern.FindAllStringSubmatch(answer, -1) {
			value := firstNonEmptyGroup(match)
			if value == "" {
				continue
			}
			if claimType == ClaimProjectName && nameClaimStopwords[strings.ToLower(value)] {
				continue
			}
			claims = append(claims, FactClaim{
				ClaimType:  claimType,
				Value:      value,
				Confidence: 0.8,
				SourceText: match[0],
			})
		}
	}
	return claims
}

// firstNonEmptyGroup returns the first non-empty capture group in match
// (indices 1..), since ClaimProjectName's alternatives populate different
// group indices depending on which one matched.
func firstNonEmptyGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
