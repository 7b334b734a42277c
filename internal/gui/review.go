package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/keagan/snapsift/internal/gui/catalog"
)

// RunReview opens a window listing the screenshots saved in dir and blocks until
// it is closed.
func RunReview(logger zerolog.Logger, dir string) error {
	cat, err := catalog.Load(dir)
	if err != nil {
		return err
	}
	logger = logger.With().Str("component", "review").Logger()

	myApp := app.NewWithID("snapsift")
	w := myApp.NewWindow("snapsift review")
	w.Resize(fyne.NewSize(1100, 650))

	statusLabel := widget.NewLabel("")
	detailLabel := widget.NewLabel("Select a screenshot")
	detailLabel.Wrapping = fyne.TextWrapWord

	preview := canvas.NewImageFromFile("")
	preview.FillMode = canvas.ImageFillContain
	preview.SetMinSize(fyne.NewSize(640, 360))

	list := widget.NewList(
		func() int { return len(cat.Entries) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(cat.Entries[id].Title())
		},
	)
	list.OnSelected = func(id widget.ListItemID) {
		entry := cat.Entries[id]
		detailLabel.SetText(entry.Details())
		if entry.Missing {
			preview.File = ""
			logger.Warn().Str("file", entry.Shot.Filename).Msg("screenshot file missing")
		} else {
			preview.File = entry.Path
		}
		preview.Refresh()
	}

	showStatus := func() {
		text := fmt.Sprintf("%s: %d screenshots", cat.Dir, len(cat.Entries))
		if n := cat.MissingCount(); n > 0 {
			text += fmt.Sprintf(", %d missing", n)
		}
		statusLabel.SetText(text)
	}
	showStatus()

	openButton := widget.NewButton("Open Folder", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uri == nil {
				return
			}
			next, err := catalog.Load(uri.Path())
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			cat = next
			logger.Info().Str("dir", cat.Dir).Int("screenshots", len(cat.Entries)).Msg("output loaded")
			list.UnselectAll()
			list.Refresh()
			preview.File = ""
			preview.Refresh()
			detailLabel.SetText("Select a screenshot")
			showStatus()
		}, w)
	})

	detail := container.NewBorder(nil, detailLabel, nil, nil, preview)
	split := container.NewHSplit(list, detail)
	split.Offset = 0.3

	w.SetContent(container.NewBorder(
		container.NewHBox(openButton, statusLabel),
		nil, nil, nil,
		split,
	))

	if len(cat.Entries) > 0 {
		list.Select(0)
	}

	logger.Info().Str("dir", dir).Int("screenshots", len(cat.Entries)).Msg("review window open")
	w.ShowAndRun()
	return nil
}
