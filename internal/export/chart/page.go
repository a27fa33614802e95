package chart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/reportgate/reportgate/internal/model"
)

// canvasSelector is the element captured by the screenshot
const canvasSelector = "#chart"

// readyExpression turns true once Chart.js has drawn the canvas
const readyExpression = "window.chartReady === true"

const defaultChartType = "line"

var pageTemplate = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  html, body { margin: 0; padding: 0; background: #ffffff; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
  #chart { display: block; }
</style>
<script src="{{.ScriptURL}}"></script>
</head>
<body>
<canvas id="chart" width="{{.Width}}" height="{{.Height}}"></canvas>
<script>
(function () {
  var config = {{.Config}};
  Chart.defaults.font.family = getComputedStyle(document.body).fontFamily;
  new Chart(document.getElementById("chart").getContext("2d"), config);
  requestAnimationFrame(function () { window.chartReady = true; });
})();
</script>
</body>
</html>
`))

type pageData struct {
	Title     string
	ScriptURL template.URL
	Width     int
	Height    int
	Config    template.JS
}

// buildPage renders the standalone document that draws one chart
func buildPage(req Request, scriptURL string) (string, error) {
	cfg, err := json.Marshal(chartConfig(req))
	if err != nil {
		return "", fmt.Errorf("encode chart config: %w", err)
	}

	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, pageData{
		Title:     req.Title,
		ScriptURL: template.URL(scriptURL),
		Width:     req.Width,
		Height:    req.Height,
		Config:    template.JS(cfg),
	})
	if err != nil {
		return "", fmt.Errorf("render chart page: %w", err)
	}
	return buf.String(), nil
}

// chartConfig maps block content onto a Chart.js configuration object
func chartConfig(req Request) map[string]any {
	chartType, fill := normalizeType(req.ChartType)
	style := req.Style

	datasets := make([]map[string]any, 0)
	labels := []string{}
	if req.Data != nil {
		labels = req.Data.Labels
		for _, ds := range req.Data.Datasets {
			entry := map[string]any{
				"label":       ds.Label,
				"data":        ds.Data,
				"borderWidth": 2,
				"spanGaps":    true,
				"fill":        fill,
				"pointRadius": 0,
			}
			if ds.BorderColor != "" {
				entry["borderColor"] = ds.BorderColor
			}
			if ds.BackgroundColor != "" {
				entry["backgroundColor"] = ds.BackgroundColor
			}
			if ds.Type != "" {
				t, dsFill := normalizeType(ds.Type)
				entry["type"] = t
				entry["fill"] = dsFill
			}
			datasets = append(datasets, entry)
		}
	}

	legend := map[string]any{"display": boolOr(style.ShowLegend, true)}
	if style.LegendPosition != "" {
		legend["position"] = style.LegendPosition
	}

	options := map[string]any{
		"responsive": false,
		"animation":  false,
		"plugins": map[string]any{
			"legend": legend,
			"title": map[string]any{
				"display": req.Title != "",
				"text":    req.Title,
			},
		},
	}

	if !isRadial(chartType) {
		showGrid := boolOr(style.ShowGrid, true)
		options["scales"] = map[string]any{
			"x": axis(style.Stacked, false, showGrid, style.XAxisLabel),
			"y": axis(style.Stacked, style.BeginAtZero, showGrid, style.YAxisLabel),
		}
	}

	return map[string]any{
		"type": chartType,
		"data": map[string]any{
			"labels":   labels,
			"datasets": datasets,
		},
		"options": options,
	}
}

func axis(stacked, beginAtZero, showGrid bool, label string) map[string]any {
	return map[string]any{
		"stacked":     stacked,
		"beginAtZero": beginAtZero,
		"grid":        map[string]any{"display": showGrid},
		"title": map[string]any{
			"display": label != "",
			"text":    label,
		},
	}
}

// normalizeType maps editor chart types to Chart.js types. "area" is a
// filled line.
func normalizeType(t string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "":
		return defaultChartType, false
	case "area":
		return "line", true
	case "column":
		return "bar", false
	case "polararea":
		return "polarArea", false
	default:
		return strings.ToLower(strings.TrimSpace(t)), false
	}
}

func isRadial(chartType string) bool {
	switch chartType {
	case "pie", "doughnut", "polarArea", "radar":
		return true
	}
	return false
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// RequestFromContent builds a render request for a chart block
func RequestFromContent(blockID uint, content *model.ChartContent) Request {
	return Request{
		ChartID:   blockID,
		Title:     content.ChartTitle,
		ChartType: content.ChartType,
		Style:     content.ChartConfig,
		Data:      content.ChartData,
	}
}
