// Package report renders pipeline results to XLSX workbooks for sharing
// outside the CLI.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/charlie-robison/pythia/internal/research"
	"github.com/charlie-robison/pythia/internal/risk"
)

// WriteResearchXLSX renders a research report as a workbook with one sheet
// per section.
func WriteResearchXLSX(w io.Writer, out *research.Output) error {
	f := xlsx.NewFile()

	overview, err := f.AddSheet("Overview")
	if err != nil {
		return eris.Wrap(err, "report: add overview sheet")
	}
	addKV(overview, "Generated", out.ResearchTimestamp)
	addKV(overview, "Synthesis", out.Synthesis)
	if out.MainEventResearch != nil {
		m := out.MainEventResearch
		addKV(overview, "Main event", m.EventTitle)
		addKV(overview, "Main summary", m.Summary)
		addKV(overview, "Main sentiment", string(m.Sentiment))
		addKV(overview, "Sentiment rationale", m.SentimentRationale)
	}
	addKV(overview, "Disclaimer", out.Disclaimer)

	events, err := f.AddSheet("Sub-events")
	if err != nil {
		return eris.Wrap(err, "report: add sub-events sheet")
	}
	addHeader(events, "ID", "Title", "Sentiment", "Summary", "Key findings", "Sources")
	for _, ser := range out.SubEventResearch {
		links := make([]string, 0, len(ser.NewsLinks))
		for _, l := range ser.NewsLinks {
			links = append(links, l.URL)
		}
		addCells(events,
			ser.SubEventID, ser.SubEventTitle, string(ser.Sentiment),
			ser.Summary, strings.Join(ser.KeyFindings, "\n"), strings.Join(links, "\n"))
	}

	if len(out.Relationships) > 0 {
		rels, err := f.AddSheet("Relationships")
		if err != nil {
			return eris.Wrap(err, "report: add relationships sheet")
		}
		addHeader(rels, "ID", "Title", "Relationship", "Influencing news")
		for _, r := range out.Relationships {
			addCells(rels, r.SubEventID, r.SubEventTitle, r.RelationshipSummary, r.InfluencingNews)
		}
	}

	return eris.Wrap(f.Write(w), "report: write research workbook")
}

// WriteRiskXLSX renders a risk report as a workbook.
func WriteRiskXLSX(w io.Writer, out *risk.Output) error {
	f := xlsx.NewFile()

	overview, err := f.AddSheet("Overview")
	if err != nil {
		return eris.Wrap(err, "report: add overview sheet")
	}
	addKV(overview, "Generated", out.AnalysisTimestamp)
	addKV(overview, "Overall analysis", out.OverallAnalysis)
	addKV(overview, "Disclaimer", out.Disclaimer)

	signals, err := f.AddSheet("Signals")
	if err != nil {
		return eris.Wrap(err, "report: add signals sheet")
	}
	addHeader(signals, "Market ID", "Question", "Prediction", "Confidence", "YES price", "Rationale")
	for _, s := range out.Signals {
		price := ""
		if s.CurrentPrice != nil {
			price = fmt.Sprintf("%.3f", *s.CurrentPrice)
		}
		addCells(signals,
			s.MarketID, s.Question, strings.ToUpper(string(s.Prediction)),
			string(s.Confidence), price, s.Rationale)
	}

	return eris.Wrap(f.Write(w), "report: write risk workbook")
}

func addKV(sheet *xlsx.Sheet, key, value string) {
	row := sheet.AddRow()
	row.AddCell().SetString(key)
	row.AddCell().SetString(value)
}

func addHeader(sheet *xlsx.Sheet, names ...string) {
	addCells(sheet, names...)
}

func addCells(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
