package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	tradesSheet  = "Trades"
)

// WriteWorkbook exports the session report to an Excel workbook under
// dir (created if missing) and returns the file path.
func WriteWorkbook(dir string, r SessionReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName("Sheet1", summarySheet)
	if _, err := fx.NewSheet(tradesSheet); err != nil {
		return "", err
	}

	writeSummarySheet(fx, r)
	writeTradesSheet(fx, r)

	name := fmt.Sprintf("session_%s.xlsx", r.EndedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := fx.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func writeSummarySheet(fx *excelize.File, r SessionReport) {
	rows := [][]interface{}{
		{"Strategy", r.Strategy},
		{"Started", r.StartedAt.Format("2006-01-02 15:04:05")},
		{"Ended", r.EndedAt.Format("2006-01-02 15:04:05")},
		{"Duration", r.Duration().String()},
		{"Symbols", len(r.Symbols)},
		{"Balance", r.Performance.Balance},
		{"Realized PnL", r.Performance.RealizedPnL},
		{"Unrealized PnL", r.Performance.UnrealizedPnL},
		{"Closed trades", r.Performance.ClosedTrades},
		{"Open positions", r.Performance.ActivePositions},
		{"Win rate", r.Performance.WinRate},
		{"Risk score", r.Risk.Score},
		{"Risk level", r.Risk.Level.String()},
		{"Exposure", r.Risk.TotalExposure},
		{"Drawdown", r.Risk.Drawdown},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		fx.SetSheetRow(summarySheet, cell, &row)
	}
}

func writeTradesSheet(fx *excelize.File, r SessionReport) {
	header := []interface{}{"Symbol", "Side", "Size", "Entry", "Exit", "PnL", "Reason", "Opened", "Closed"}
	fx.SetSheetRow(tradesSheet, "A1", &header)

	for i, trade := range r.Trades {
		row := []interface{}{
			trade.Symbol,
			string(trade.Side),
			trade.Size,
			trade.EntryPrice,
			trade.ExitPrice,
			trade.PnL,
			trade.Reason,
			trade.OpenedAt.Format("2006-01-02 15:04:05"),
			trade.ClosedAt.Format("2006-01-02 15:04:05"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		fx.SetSheetRow(tradesSheet, cell, &row)
	}
}
