package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/himanishpuri/SoundScope/pkg/models"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#0087AF")
	warnColor    = lipgloss.Color("#FFA500")
	errorColor   = lipgloss.Color("#A40000")
	okColor      = lipgloss.Color("#00AA00")
	mutedColor   = lipgloss.Color("#888888")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginTop(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	OKStyle = lipgloss.NewStyle().
		Foreground(okColor)

	WarnStyle = lipgloss.NewStyle().
			Foreground(warnColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(18)

	ValueStyle = lipgloss.NewStyle().
			Bold(true)

	barStyle = lipgloss.NewStyle().Foreground(primaryColor)
)

const barWidth = 30

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a non-fatal problem
func PrintWarning(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", WarnStyle.Render("Warning:"), message)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func kv(key, value string) {
	fmt.Printf("  %s %s\n", KeyStyle.Render(key), ValueStyle.Render(value))
}

func signed(v float64, unit string) string {
	return fmt.Sprintf("%+.1f %s", v, unit)
}

func printTrack(title string, a *models.TrackAnalysis) {
	fmt.Println(TitleStyle.Render(title + ": " + a.Track.Name))

	m := a.Metadata
	kv("Format", m.Format)
	kv("Duration", fmt.Sprintf("%.2f s", m.DurationSec))
	kv("Sample rate", fmt.Sprintf("%d Hz", m.SampleRate))
	if m.BitDepth > 0 {
		kv("Bit depth", fmt.Sprintf("%d bit", m.BitDepth))
	}
	kv("Channels", fmt.Sprintf("%d", m.Channels))

	if a.Loudness == nil {
		fmt.Printf("  %s %s\n", KeyStyle.Render("Loudness"), WarnStyle.Render("unavailable"))
	} else {
		kv("Integrated", fmt.Sprintf("%.1f LUFS", a.Loudness.Integrated))
		kv("Loudness range", fmt.Sprintf("%.1f LU", a.Loudness.Range))
		kv("True peak", fmt.Sprintf("%.1f dBTP", a.Loudness.TruePeak))
	}

	fmt.Println()
	for _, b := range a.Spectrum {
		label := fmt.Sprintf("%s (%g-%g Hz)", b.Name, b.LowHz, b.HighHz)
		if b.RMSDb <= models.SentinelDb {
			fmt.Printf("  %-26s %s\n", label, WarnStyle.Render("n/a"))
			continue
		}
		fmt.Printf("  %-26s %s %6.1f dB\n", label, bar(b.RMSDb), b.RMSDb)
	}
}

// bar draws a level on a -60..0 dBFS scale.
func bar(db float64) string {
	n := int((db + 60) / 60 * barWidth)
	n = max(0, min(barWidth, n))
	return barStyle.Render(strings.Repeat("█", n)) + strings.Repeat("·", barWidth-n)
}

func printAnalysis(res *models.AnalysisResult) {
	printTrack("Mix", &res.Primary)

	if res.Reference != nil {
		printTrack("Reference", res.Reference)
	}
	if res.Comparison != nil {
		fmt.Println(TitleStyle.Render("Mix vs reference"))
		kv("Loudness", signed(res.Comparison.LoudnessDiff, "LU"))
		kv("Range", signed(res.Comparison.RangeDiff, "LU"))
		kv("True peak", signed(res.Comparison.PeakDiff, "dB"))
	}
	if res.PresetComparison != nil {
		pc := res.PresetComparison
		fmt.Println(TitleStyle.Render("Mix vs " + pc.Preset + " preset"))
		kv("Target", fmt.Sprintf("%.0f LUFS / %.0f dBTP", pc.TargetLUFS, pc.TargetTruePeak))
		kv("Loudness", signed(pc.LoudnessDiff, "LU"))
		peak := signed(pc.TruePeakDiff, "dB")
		if pc.TruePeakDiff > 0 {
			peak = WarnStyle.Render(peak + " over ceiling")
		}
		kv("True peak", peak)
	}
	if res.Feedback != "" {
		fmt.Println(TitleStyle.Render("Feedback"))
		fmt.Println(res.Feedback)
	}
	fmt.Println()
}

func printPresets(presets []models.PresetTarget) {
	fmt.Println(TitleStyle.Render("Genre presets"))
	for _, p := range presets {
		fmt.Printf("  %-10s %-18s %6.0f LUFS %5.0f dBTP  %s\n",
			ValueStyle.Render(p.ID), p.Name, p.TargetLUFS, p.MaxTruePeak, KeyStyle.UnsetWidth().Render(p.Description))
	}
	fmt.Println()
}

func printSaved(ref *models.SavedReference) {
	fmt.Printf("%s %s (%s)\n", OKStyle.Render("Saved"), ref.Name, ref.ID)
	printTrack("Reference", &ref.Analysis)
	fmt.Println()
}

func printReferences(refs []models.SavedReference) {
	if len(refs) == 0 {
		fmt.Println("No saved references.")
		return
	}
	fmt.Println(TitleStyle.Render(fmt.Sprintf("Saved references (%d)", len(refs))))
	for _, r := range refs {
		lufs := "n/a"
		if r.Analysis.Loudness != nil {
			lufs = fmt.Sprintf("%.1f LUFS", r.Analysis.Loudness.Integrated)
		}
		fmt.Printf("  %s  %-30s %-12s %s\n", r.ID, r.Name, lufs, KeyStyle.UnsetWidth().Render(r.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	fmt.Println()
}
