package pdf

import (
	"context"
	"io"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	InvoiceData
	DatePaid string
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	m := newDocument()

	m.AddRow(12,
		text.NewCol(12, "Receipt", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
	)
	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date paid: "+data.DatePaid, props.Text{Top: 4}),
			text.New("Billing period: "+data.Period, props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New(roomLabel(data.Building, data.RoomNumber), props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New("Tenant "+data.TenantID, props.Text{Top: 5, Align: align.Right}),
		),
	)
	m.AddRow(15,
		text.NewCol(12, data.Total+" paid on "+data.DatePaid, props.Text{Size: 14, Style: fontstyle.Bold, Top: 5}),
	)

	addItems(m, data.Items)
	addTotal(m, "Total", data.Total)

	return generate(m)
}
