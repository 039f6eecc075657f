package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// InvoiceData is the presentation view of an invoice. Amounts are already
// formatted.
type InvoiceData struct {
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	Period        string
	Status        string

	Building   string
	RoomNumber string
	TenantID   string

	Items []InvoiceItem
	Total string

	// Summary carries extra label/value rows, e.g. a move-out settlement.
	Summary []SummaryLine
}

type InvoiceItem struct {
	Description string
	Qty         int64
	UnitPrice   string
	Amount      string
}

type SummaryLine struct {
	Label string
	Value string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	m := newDocument()

	m.AddRow(12,
		text.NewCol(8, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, data.Status, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+data.IssueDate, props.Text{Top: 4}),
			text.New("Date due: "+data.DueDate, props.Text{Top: 8}),
			text.New("Billing period: "+data.Period, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(roomLabel(data.Building, data.RoomNumber), props.Text{Top: 5, Align: align.Right}),
			text.New("Tenant "+data.TenantID, props.Text{Top: 9, Align: align.Right}),
		),
	)

	addItems(m, data.Items)
	addTotal(m, "Amount due", data.Total)

	if len(data.Summary) > 0 {
		m.AddRow(12, text.NewCol(12, "Deposit settlement", props.Text{Size: 11, Style: fontstyle.Bold, Top: 4}))
		for _, line := range data.Summary {
			m.AddRow(7,
				col.New(6),
				text.NewCol(4, line.Label, props.Text{Size: 9}),
				text.NewCol(2, line.Value, props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	return generate(m)
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func addItems(m core.Maroto, items []InvoiceItem) {
	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range items {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
}

func addTotal(m core.Maroto, label, value string) {
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, label, props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, value, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
}

func generate(m core.Maroto) (io.Reader, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

func roomLabel(building, number string) string {
	if building == "" {
		return "Room " + number
	}
	return fmt.Sprintf("%s, Room %s", building, number)
}
