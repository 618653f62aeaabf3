package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	infoColor    = color.New(color.FgWhite)
	dimColor     = color.New(color.FgHiBlack)
	boldColor    = color.New(color.Bold)
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReview(r *core.ReviewResult) {
	separator := strings.Repeat("=", 60)
	thin := strings.Repeat("-", 60)

	fmt.Println()
	titleColor.Println(separator)
	titleColor.Printf("REVIEW %s #%d\n", r.RepositoryName, r.PRNumber)
	titleColor.Println(separator)

	scoreColor := successColor
	switch r.ReviewStatus {
	case core.ReviewNeedsWork:
		scoreColor = warnColor
	case core.ReviewMajorIssues, core.ReviewFailed:
		scoreColor = errorColor
	}
	scoreColor.Printf("Merge score: %d/100 (%s)\n", r.MergeScore, r.ReviewStatus)
	dimColor.Printf("Confidence: %.0f%%  Time: %s\n", r.Confidence*100, r.ProcessingTime.Round(time.Millisecond))
	fmt.Println()
	infoColor.Println(r.Summary)

	if len(r.RulesViolated) > 0 {
		fmt.Println()
		warnColor.Println(thin)
		warnColor.Printf("RULES VIOLATED (%d)\n", len(r.RulesViolated))
		warnColor.Println(thin)
		for _, rule := range r.RulesViolated {
			printSeverityBadge(rule.Severity)
			boldColor.Printf(" %s\n", rule.Name)
			if rule.Details != "" {
				dimColor.Printf("   %s\n", rule.Details)
			}
		}
	}

	if len(r.Suggestions) == 0 {
		fmt.Println()
		successColor.Println("No suggestions.")
		return
	}

	fmt.Println()
	warnColor.Println(thin)
	warnColor.Printf("SUGGESTIONS (%d)\n", len(r.Suggestions))
	warnColor.Println(thin)
	for _, s := range r.Suggestions {
		fmt.Println()
		printSeverityBadge(s.Severity)
		boldColor.Printf(" %s", s.File)
		if s.LineNumber > 0 {
			dimColor.Printf(":%d", s.LineNumber)
		}
		fmt.Println()
		infoColor.Println(s.Description)
		if s.SuggestedCode != "" {
			dimColor.Println(s.SuggestedCode)
		}
	}
	fmt.Println()
}

func printSeverityBadge(severity core.Severity) {
	label := strings.ToUpper(string(severity))
	switch severity {
	case core.SeverityCritical:
		color.New(color.BgRed, color.FgWhite, color.Bold).Printf(" %s ", label)
	case core.SeverityHigh:
		color.New(color.BgHiRed, color.FgWhite).Printf(" %s ", label)
	case core.SeverityMedium:
		color.New(color.BgYellow, color.FgBlack).Printf(" %s ", label)
	default:
		color.New(color.BgGreen, color.FgWhite).Printf(" %s ", label)
	}
}
