package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/himanishpuri/SoundScope/pkg/models"
	"github.com/himanishpuri/SoundScope/pkg/soundscope"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/compare"
)

type AnalyzeCmd struct {
	File        string `arg:"" type:"existingfile" help:"Mix to analyze"`
	Reference   string `short:"r" type:"existingfile" help:"Reference track to compare against" xor:"reference"`
	ReferenceID string `name:"reference-id" help:"Saved reference to compare against" xor:"reference"`
	Preset      string `short:"p" help:"Genre preset id (see 'presets')"`
}

func (c *AnalyzeCmd) Run(cli *CLI, ctx context.Context) error {
	if c.Preset != "" {
		if _, ok := compare.LookupPreset(c.Preset); !ok {
			PrintWarning(fmt.Sprintf("%v %q, continuing without a preset comparison", soundscope.ErrUnknownPreset, c.Preset))
		}
	}

	svc, err := cli.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	req := soundscope.Request{
		Primary:     models.Track{Path: c.File, Name: filepath.Base(c.File)},
		ReferenceID: c.ReferenceID,
		PresetID:    c.Preset,
	}
	if c.Reference != "" {
		req.Reference = &models.Track{Path: c.Reference, Name: filepath.Base(c.Reference)}
	}

	res, err := svc.Analyze(ctx, req)
	if err != nil {
		return err
	}
	if cli.JSON {
		return printJSON(res)
	}
	printAnalysis(res)
	return nil
}

type PresetsCmd struct{}

func (c *PresetsCmd) Run(cli *CLI) error {
	presets := compare.Presets()
	if cli.JSON {
		return printJSON(presets)
	}
	printPresets(presets)
	return nil
}

type ReferenceCmd struct {
	Save   ReferenceSaveCmd   `cmd:"" help:"Analyze a track and store it as a reference"`
	List   ReferenceListCmd   `cmd:"" help:"List saved references"`
	Delete ReferenceDeleteCmd `cmd:"" help:"Delete a saved reference"`
}

type ReferenceSaveCmd struct {
	File string `arg:"" type:"existingfile" help:"Reference track"`
	Name string `short:"n" help:"Display name (defaults to the file name)"`
}

func (c *ReferenceSaveCmd) Run(cli *CLI, ctx context.Context) error {
	svc, err := cli.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	saved, err := svc.SaveReference(ctx, models.Track{Path: c.File, Name: filepath.Base(c.File)}, c.Name)
	if err != nil {
		return err
	}
	if cli.JSON {
		return printJSON(saved)
	}
	printSaved(saved)
	return nil
}

type ReferenceListCmd struct{}

func (c *ReferenceListCmd) Run(cli *CLI) error {
	svc, err := cli.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	refs, err := svc.ListReferences()
	if err != nil {
		return err
	}
	if cli.JSON {
		return printJSON(refs)
	}
	printReferences(refs)
	return nil
}

type ReferenceDeleteCmd struct {
	ID string `arg:"" help:"Reference id"`
}

func (c *ReferenceDeleteCmd) Run(cli *CLI) error {
	svc, err := cli.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.DeleteReference(c.ID); err != nil {
		return err
	}
	fmt.Printf("%s %s\n", OKStyle.Render("Deleted"), c.ID)
	return nil
}
