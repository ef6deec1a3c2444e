// Package main renders an offline HTML report from the alert history:
// which labels alerted and how alert volume moved over the chosen window.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"wayguard/pkg/config"
	"wayguard/pkg/db"
	"wayguard/pkg/model"
	"wayguard/pkg/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfgPath := flag.String("config", "configs/wayguard.yaml", "Path to config file")
	window := flag.Duration("window", 24*time.Hour, "Report window, counted back from now")
	out := flag.String("out", "wayguard-report.html", "Output HTML file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.Init(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	st := store.NewSQLiteStore(database)

	ctx := context.Background()
	since := time.Now().Add(-*window)

	counts, err := st.CountByLabel(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to aggregate labels: %w", err)
	}
	alerts, err := st.AlertsSince(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}

	page := components.NewPage()
	page.PageTitle = "Wayguard Report"
	page.AddCharts(labelChart(counts, *window), hourlyChart(alerts, since))

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	fmt.Printf("%d alerts in the last %s\n", len(alerts), *window)
	fmt.Printf("Report written to %s\n", *out)
	return nil
}

func labelChart(counts map[string]int, window time.Duration) *charts.Bar {
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	data := make([]opts.BarData, 0, len(labels))
	for _, l := range labels {
		data = append(data, opts.BarData{Value: counts[l]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Alerts per label", Subtitle: fmt.Sprintf("window %s", window)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("alerts", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

func hourlyChart(alerts []*model.Alert, since time.Time) *charts.Line {
	start := since.Truncate(time.Hour)
	end := time.Now().Truncate(time.Hour)
	n := int(end.Sub(start)/time.Hour) + 1
	if n < 1 {
		n = 1
	}

	hours := make([]string, n)
	for i := range hours {
		hours[i] = start.Add(time.Duration(i) * time.Hour).Format("Jan 02 15:00")
	}
	buckets := map[model.Class][]int{
		model.ClassInfo:    make([]int, n),
		model.ClassWarning: make([]int, n),
		model.ClassUrgent:  make([]int, n),
	}
	for _, a := range alerts {
		i := int(a.Time.Truncate(time.Hour).Sub(start) / time.Hour)
		if i < 0 || i >= n {
			continue
		}
		buckets[a.Class][i]++
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Alerts per hour"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(hours)
	for _, s := range []struct {
		class model.Class
		color string
	}{
		{model.ClassUrgent, "#ff5252"},
		{model.ClassWarning, "#ffb300"},
		{model.ClassInfo, "#42a5f5"},
	} {
		data := make([]opts.LineData, n)
		for i, v := range buckets[s.class] {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(s.class.String(), data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: s.color}),
		)
	}
	return line
}
