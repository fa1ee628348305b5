package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/kpiscope/internal/utils"
	"github.com/tidwall/gjson"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize a saved result envelope",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("results")
		if path == "" {
			return &exitError{code: exitFatal, err: fmt.Errorf("--results is required")}
		}
		data, err := os.ReadFile(utils.ExpandPath(path))
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		if !gjson.ValidBytes(data) {
			return &exitError{code: exitFatal, err: fmt.Errorf("%s is not valid JSON", path)}
		}
		showEnvelope(gjson.ParseBytes(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringP("results", "r", "", "Result envelope JSON written by 'kpiscope process --output'")
}

func showEnvelope(env gjson.Result) {
	mode := env.Get("mode").String()
	fmt.Printf("Mode:              %s\n", mode)
	fmt.Printf("Run:               %s\n", env.Get("run_id").String())
	fmt.Printf("Timestamp:         %s\n", env.Get("timestamp").String())
	fmt.Printf("Config version:    %s\n", env.Get("config_version").String())
	fmt.Printf("Records processed: %d\n", env.Get("records_processed").Int())

	var kpis gjson.Result
	switch mode {
	case "baseline":
		kpis = env.Get("baseline_kpis")
	case "incremental":
		if !env.Get("changes_detected").Bool() {
			fmt.Println("\nNo changes detected, KPIs unchanged")
			return
		}
		fmt.Printf("Changes:           %d new, %d changed (%s)\n",
			env.Get("changes.new_records").Int(), env.Get("changes.changed_records").Int(), env.Get("processing_speedup").String())
		kpis = env.Get("updated_kpis")
	case "targeted":
		fmt.Printf("Target KPI:        %s\n", env.Get("target_kpi").String())
		fmt.Printf("Efficiency:        %s\n", env.Get("efficiency").String())
		kpis = gjson.Parse(fmt.Sprintf(`{%q:%s}`, env.Get("target_kpi").String(), env.Get("updated_kpi").Raw))
	}

	if kpis.IsObject() {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "KPI\tNAME\tSTATUS\tIMPACT\t")
		kpis.ForEach(func(id, res gjson.Result) bool {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", id.String(), res.Get("name").String(), res.Get("status").String(), res.Get("business_impact").String())
			return true
		})
		w.Flush()
	}

	if score := env.Get("overall_score"); score.Exists() {
		fmt.Printf("\nOverall score: %.1f (%s)\n", score.Get("overall_score").Float(), score.Get("performance_band").String())
	}
	if failures := env.Get("kpi_failures").Array(); len(failures) > 0 {
		fmt.Println("\nFailures:")
		for _, f := range failures {
			fmt.Printf("  %s: %s\n", f.Get("kpi").String(), f.Get("error").String())
		}
	}
	if degraded := env.Get("degraded_kpis").Array(); len(degraded) > 0 {
		fmt.Print("\nDegraded KPIs:")
		for _, d := range degraded {
			fmt.Printf(" %s", d.String())
		}
		fmt.Println()
	}
	if msg := env.Get("message").String(); msg != "" {
		fmt.Printf("\n%s\n", msg)
	}
}
