package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// Card insert dimensions in millimetres (Japanese business card).
const (
	cardWidth  = 91.0
	cardHeight = 55.0
)

var ErrMissingInviteURL = errors.New("card_missing_invite_url")

type CardData struct {
	MemberID  string
	InviteURL string
	PublicURL string
}

// CardRenderer renders the printable insert that ships with a metal card.
type CardRenderer interface {
	RenderCard(ctx context.Context, data CardData) ([]byte, error)
	FileName(memberID string) string
}

type MarotoRenderer struct{}

func New() CardRenderer {
	return &MarotoRenderer{}
}

func (r *MarotoRenderer) RenderCard(ctx context.Context, data CardData) ([]byte, error) {
	if strings.TrimSpace(data.InviteURL) == "" {
		return nil, ErrMissingInviteURL
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithDimensions(cardWidth, cardHeight).
		WithLeftMargin(4).
		WithTopMargin(4).
		WithRightMargin(4).
		Build()

	m := maroto.New(cfg)

	m.AddRow(8,
		text.NewCol(12, "METALID", props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(34,
		col.New(5).Add(
			text.New(fmt.Sprintf("No. %s", data.MemberID), props.Text{Size: 11, Style: fontstyle.Bold, Top: 2}),
			text.New("Scan the code to", props.Text{Size: 7, Top: 12}),
			text.New("activate your card.", props.Text{Size: 7, Top: 16}),
			text.New("The link works once.", props.Text{Size: 7, Top: 24}),
		),
		code.NewQrCol(7, data.InviteURL, props.Rect{
			Center:  true,
			Percent: 100,
		}),
	)
	if data.PublicURL != "" {
		m.AddRow(5,
			text.NewCol(12, data.PublicURL, props.Text{Size: 6, Align: align.Left}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func (r *MarotoRenderer) FileName(memberID string) string {
	return slug.Make(fmt.Sprintf("metalid card %s", memberID)) + ".pdf"
}
