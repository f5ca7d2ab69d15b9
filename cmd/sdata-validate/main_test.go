package main

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func testResults() []result {
	return []result{
		{
			DatasetName: "MERFISH (Mouse brain)",
			DatasetURL:  "https://s3.embl.de/spatialdata/spatialdata-sandbox/merfish.zarr/",
			Success:     true,
			Elements: map[string][]string{
				"images": {"rasterized"},
				"points": {"single_molecule"},
			},
			Systems: []string{"global"},
		},
		{
			DatasetName:  "Visium (Breast cancer)",
			DatasetURL:   "https://s3.embl.de/spatialdata/spatialdata-sandbox/visium_associated_xenium_io.zarr/",
			ErrorType:    "NoConsolidatedMetadata",
			ErrorMessage: "no consolidated metadata found",
		},
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := string(renderMarkdown(testResults()))

	for _, want := range []string{
		"# SpatialData Dataset Compatibility Report",
		"| Dataset | Status | Elements | Coordinate systems | URL |",
		"| MERFISH (Mouse brain) | ✅ | 2 | global | merfish.zarr/ |",
		"| Visium (Breast cancer) | ❌ | 0 |  | visium_associated_xenium_io.zarr/ |",
		"Legend: ✅ Success | ❌ Failed",
		"### MERFISH (Mouse brain)",
		"**Status:** ✅ Success",
		"- images: rasterized",
		"- points: single_molecule",
		"**Coordinate Systems:** global",
		"**Status:** ❌ Failed",
		"**Error Type:** `NoConsolidatedMetadata`",
		"```\nno consolidated metadata found\n```",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown report is missing %q", want)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	d, err := renderCSV(testResults())
	if err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(bytes.NewReader(d)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(rows))
	}
	if rows[0][0] != "Dataset Name" || rows[0][6] != "Coordinate Systems" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][2] != "true" || rows[2][2] != "false" {
		t.Errorf("success column = %q, %q", rows[1][2], rows[2][2])
	}
	if rows[1][5] != "images: rasterized; points: single_molecule" {
		t.Errorf("elements column = %q", rows[1][5])
	}
	if rows[2][3] != "NoConsolidatedMetadata" {
		t.Errorf("error type column = %q", rows[2][3])
	}
}

func TestRenderJSON(t *testing.T) {
	old := *format
	defer func() { *format = old }()

	*format = "json"
	d, err := render(testResults())
	if err != nil {
		t.Fatal(err)
	}
	if len(d) == 0 || d[len(d)-1] != '\n' {
		t.Error("json report should end with a newline")
	}
	var back []result
	if err := json.Unmarshal(d, &back); err != nil {
		t.Fatal(err)
	}
	if len(back) != 2 || !back[0].Success || back[1].ErrorType != "NoConsolidatedMetadata" {
		t.Errorf("round trip = %+v", back)
	}

	*format = "yaml"
	if _, err := render(nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestShortURL(t *testing.T) {
	if got := shortURL("https://s3.embl.de/spatialdata/spatialdata-sandbox/mibitof.zarr/"); got != "mibitof.zarr/" {
		t.Errorf("shortURL = %q", got)
	}
	if got := shortURL("https://example.com/other.zarr"); got != "https://example.com/other.zarr" {
		t.Errorf("unrelated URLs should pass through, got %q", got)
	}
}
