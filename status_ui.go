package main

import (
	"image/color"

	"github.com/ebitenui/ebitenui"
	imageui "github.com/ebitenui/ebitenui/image"
	"github.com/ebitenui/ebitenui/widget"
	"github.com/hajimehoshi/ebiten/v2"
	ebtext "github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/milk9111/tileworld/common"
)

// StatusUI is the loading banner shown while a layer loads, retries or
// fails. The scene stays interactive underneath it.
type StatusUI struct {
	ui    *ebitenui.UI
	label *widget.Text
	text  string
}

func NewStatusUI() *StatusUI {
	panelImg := imageui.NewNineSliceColor(color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 200})

	goFace := ebtext.NewGoXFace(basicfont.Face7x13)
	var face ebtext.Face = goFace

	label := widget.NewText(
		widget.TextOpts.Text("", &face, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}),
		widget.TextOpts.WidgetOpts(widget.WidgetOpts.LayoutData(widget.RowLayoutData{Position: widget.RowLayoutPositionCenter})),
	)

	panel := widget.NewContainer(
		widget.ContainerOpts.BackgroundImage(panelImg),
		widget.ContainerOpts.Layout(widget.NewRowLayout(
			widget.RowLayoutOpts.Direction(widget.DirectionVertical),
			widget.RowLayoutOpts.Padding(&widget.Insets{Top: 8, Bottom: 8, Left: 16, Right: 16}),
		)),
		widget.ContainerOpts.WidgetOpts(
			widget.WidgetOpts.MinSize(common.BaseWidth/3, 0),
			widget.WidgetOpts.LayoutData(widget.AnchorLayoutData{HorizontalPosition: widget.AnchorLayoutPositionCenter, VerticalPosition: widget.AnchorLayoutPositionStart}),
		),
	)
	panel.AddChild(label)

	root := widget.NewContainer(
		widget.ContainerOpts.Layout(widget.NewAnchorLayout()),
	)
	root.AddChild(panel)

	return &StatusUI{ui: &ebitenui.UI{Container: root}, label: label}
}

// SetStatus updates the banner text from the loader status.
func (s *StatusUI) SetStatus(text string) {
	if text == s.text {
		return
	}
	s.text = text
	s.label.Label = text
}

func (s *StatusUI) Visible() bool { return s.text != "" }

func (s *StatusUI) Update() {
	if s.Visible() {
		s.ui.Update()
	}
}

func (s *StatusUI) Draw(screen *ebiten.Image) {
	if s.Visible() {
		s.ui.Draw(screen)
	}
}
