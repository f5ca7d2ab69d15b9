// sdata-validate opens a list of published SpatialData datasets and reports
// which ones load cleanly, as a markdown, CSV or JSON compatibility matrix.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	spatialdata "github.com/tessera-io/spatialdata-go"
	"github.com/tessera-io/spatialdata-go/integrity"
	"github.com/tessera-io/spatialdata-go/internal/logging"
)

const helpMessage = `
sdata-validate opens a list of SpatialData datasets and reports which ones
load cleanly.

Usage: sdata-validate [options]

Without -config the built-in sandbox dataset list is used. A config file
may carry [logging] settings and [[dataset]] entries with name and url.

Options:
`

// Dataset is one entry of the validation list
type Dataset struct {
	Name string `toml:"name" json:"name"`
	URL  string `toml:"url" json:"url"`
}

type config struct {
	Logging logging.Config `toml:"logging"`
	Dataset []Dataset      `toml:"dataset"`
}

// defaultDatasets is the public sandbox collection: one store per assay
// technology the format is used with
var defaultDatasets = []Dataset{
	{"Visium HD (Mouse intestin)", "https://s3.embl.de/spatialdata/spatialdata-sandbox/visium_hd_3.0.0_io.zarr/"},
	{"Visium (Breast cancer)", "https://s3.embl.de/spatialdata/spatialdata-sandbox/visium_associated_xenium_io.zarr/"},
	{"Xenium (Breast cancer - Rep1)", "https://s3.embl.de/spatialdata/spatialdata-sandbox/xenium_rep1_io.zarr/"},
	{"Xenium (Breast cancer - Rep2)", "https://s3.embl.de/spatialdata/spatialdata-sandbox/xenium_rep2_io.zarr/"},
	{"CyCIF (Lung adenocarcinoma)", "https://s3.embl.de/spatialdata/spatialdata-sandbox/mcmicro_io.zarr/"},
	{"MERFISH (Mouse brain)", "https://s3.embl.de/spatialdata/spatialdata-sandbox/merfish.zarr/"},
	{"MIBI-TOF (Colorectal carcinoma)", "https://s3.embl.de/spatialdata/spatialdata-sandbox/mibitof.zarr/"},
	{"Imaging Mass Cytometry (Multiple cancers)", "https://s3.embl.de/spatialdata/spatialdata-sandbox/steinbock_io.zarr/"},
	{"Molecular Cartography (Mouse Liver)", "https://s3.embl.de/spatialdata/spatialdata-sandbox/mouse_liver.zarr"},
	{"SpaceM (Hepa/NIH3T3 cells)", "https://s3.embl.de/spatialdata/spatialdata-sandbox/spacem_helanih3t3.zarr"},
}

// result is one dataset's outcome
type result struct {
	DatasetName  string              `json:"dataset_name"`
	DatasetURL   string              `json:"dataset_url"`
	Success      bool                `json:"success"`
	ErrorType    string              `json:"error_type,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Elements     map[string][]string `json:"elements,omitempty"`
	Systems      []string            `json:"coordinate_systems,omitempty"`
}

var (
	configPath = flag.String("config", "", "TOML config with [logging] and [[dataset]] entries")
	filter     = flag.String("dataset", "", "only validate datasets whose name contains this substring")
	format     = flag.String("format", "markdown", "report format: markdown, csv or json")
	output     = flag.String("output", "", "write the report to this file instead of stdout")
	workers    = flag.Int("workers", 4, "datasets validated in parallel")
	timeout    = flag.Duration("timeout", 0, "per-dataset deadline, 0 for none")
	cacheMB    = flag.Int("cache-mb", 0, "in-memory byte cache per dataset in MiB, 0 to disable")
	verbose    = flag.Bool("verbose", false, "debug logging")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, helpMessage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *verbose {
		logging.SetMode(logging.DebugMode)
	}

	datasets := defaultDatasets
	if *configPath != "" {
		var cfg config
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "reading config %s: %v\n", *configPath, err)
			os.Exit(2)
		}
		cfg.Logging.SetLogger()
		if len(cfg.Dataset) > 0 {
			datasets = cfg.Dataset
		}
	}
	if *filter != "" {
		var kept []Dataset
		for _, ds := range datasets {
			if strings.Contains(strings.ToLower(ds.Name), strings.ToLower(*filter)) {
				kept = append(kept, ds)
			}
		}
		datasets = kept
	}
	if len(datasets) == 0 {
		fmt.Fprintln(os.Stderr, "no datasets to validate")
		os.Exit(2)
	}

	results := make([]result, len(datasets))
	var (
		mu   sync.Mutex
		done int
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*workers)
	for i, ds := range datasets {
		i, ds := i, ds
		g.Go(func() error {
			results[i] = validate(ctx, ds)
			mark := "✅"
			if !results[i].Success {
				mark = "❌"
			}
			mu.Lock()
			done++
			fmt.Fprintf(os.Stderr, "[%d/%d] %s %s\n", done, len(datasets), mark, ds.Name)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers report through results

	rendered, err := render(results)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *output != "" {
		if err := os.WriteFile(*output, rendered, 0644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Results written to: %s\n", *output)
	} else {
		os.Stdout.Write(rendered)
	}
}

func validate(ctx context.Context, ds Dataset) result {
	res := result{DatasetName: ds.Name, DatasetURL: ds.URL}
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	var opts []spatialdata.Option
	if *cacheMB > 0 {
		opts = append(opts, spatialdata.WithByteCache(*cacheMB<<20))
	}
	sd, err := spatialdata.ReadZarr(ctx, ds.URL, opts...)
	if err != nil {
		res.ErrorType = integrity.ErrorType(err)
		res.ErrorMessage = err.Error()
		return res
	}
	defer sd.Close()

	res.Elements = make(map[string][]string)
	for _, kind := range spatialdata.Kinds() {
		if names := sd.ElementNames(kind); len(names) > 0 {
			res.Elements[kind.String()] = names
		}
	}
	res.Systems = sd.CoordinateSystems()

	// a store that only partially loads counts as incompatible
	if fails := sd.Failures(); len(fails) > 0 {
		res.ErrorType = integrity.ErrorType(fails[0].Err)
		res.ErrorMessage = fails[0].Err.Error()
		return res
	}
	res.Success = true
	return res
}

func render(results []result) ([]byte, error) {
	switch *format {
	case "markdown":
		return renderMarkdown(results), nil
	case "csv":
		return renderCSV(results)
	case "json":
		d, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(d, '\n'), nil
	}
	return nil, fmt.Errorf("unknown format %q (want markdown, csv or json)", *format)
}

func renderMarkdown(results []result) []byte {
	var b strings.Builder
	b.WriteString("# SpatialData Dataset Compatibility Report\n")
	fmt.Fprintf(&b, "\nGenerated: %s\n", time.Now().Format("2006-01-02 15:04:05"))

	b.WriteString("\n## Summary\n\n")
	b.WriteString("| Dataset | Status | Elements | Coordinate systems | URL |\n")
	b.WriteString("|---------|--------|----------|--------------------|-----|\n")
	for _, r := range results {
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s |\n",
			r.DatasetName, statusMark(r), countElements(r.Elements),
			strings.Join(r.Systems, ", "), shortURL(r.DatasetURL))
	}
	b.WriteString("\nLegend: ✅ Success | ❌ Failed\n")

	b.WriteString("\n## Detailed Results\n")
	for _, r := range results {
		fmt.Fprintf(&b, "\n### %s\n\n", r.DatasetName)
		fmt.Fprintf(&b, "**Status:** %s %s\n", statusMark(r), statusWord(r))
		if len(r.Elements) > 0 {
			b.WriteString("\n**Elements:**\n")
			for _, kind := range spatialdata.Kinds() {
				if names, ok := r.Elements[kind.String()]; ok {
					fmt.Fprintf(&b, "- %s: %s\n", kind, strings.Join(names, ", "))
				}
			}
		}
		if len(r.Systems) > 0 {
			fmt.Fprintf(&b, "\n**Coordinate Systems:** %s\n", strings.Join(r.Systems, ", "))
		}
		if r.ErrorType != "" {
			fmt.Fprintf(&b, "\n**Error Type:** `%s`\n", r.ErrorType)
			fmt.Fprintf(&b, "\n**Error Message:**\n```\n%s\n```\n", r.ErrorMessage)
		}
	}
	return []byte(b.String())
}

func renderCSV(results []result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Dataset Name", "Dataset URL", "Success", "Error Type", "Error Message", "Elements", "Coordinate Systems"})
	for _, r := range results {
		_ = w.Write([]string{
			r.DatasetName,
			r.DatasetURL,
			strconv.FormatBool(r.Success),
			r.ErrorType,
			r.ErrorMessage,
			flattenElements(r.Elements),
			strings.Join(r.Systems, ", "),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func statusMark(r result) string {
	if r.Success {
		return "✅"
	}
	return "❌"
}

func statusWord(r result) string {
	if r.Success {
		return "Success"
	}
	return "Failed"
}

func countElements(m map[string][]string) int {
	n := 0
	for _, names := range m {
		n += len(names)
	}
	return n
}

func flattenElements(m map[string][]string) string {
	var parts []string
	for _, kind := range spatialdata.Kinds() {
		if names, ok := m[kind.String()]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", kind, strings.Join(names, " ")))
		}
	}
	return strings.Join(parts, "; ")
}

// shortURL trims the shared sandbox prefix so report tables stay narrow
func shortURL(u string) string {
	const marker = "spatialdata-sandbox/"
	if i := strings.Index(u, marker); i >= 0 {
		return u[i+len(marker):]
	}
	return u
}
