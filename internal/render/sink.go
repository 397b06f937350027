package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Face size of the watchface image.
const (
	FrameWidth  = 240
	FrameHeight = 240
)

// LogSink logs each frame.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Draw(_ context.Context, f Frame) error {
	s.Logger.Info("watchface",
		zap.String("time", f.Time),
		zap.String("date", f.Date),
		zap.String("icon", string(f.Icon)),
		zap.String("high", f.HighTemp),
		zap.String("low", f.LowTemp),
		zap.String("updated", f.Updated),
		zap.Bool("ambient", f.Ambient),
	)
	return nil
}

// ImageSink writes each frame as a PNG to Path, replacing the previous one.
type ImageSink struct {
	Path string
}

func (s ImageSink) Draw(_ context.Context, f Frame) error {
	b, err := EncodePNG(f)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".frame-*.png")
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

// MultiSink fans a frame out to every sink and returns the first error.
type MultiSink []FrameSink

func (m MultiSink) Draw(ctx context.Context, f Frame) error {
	var first error
	for _, s := range m {
		if err := s.Draw(ctx, f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// EncodePNG rasterizes f.
func EncodePNG(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Rasterize(f)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Rasterize draws f on a grayscale canvas. Ambient frames use a black background.
func Rasterize(f Frame) *image.Gray {
	bg, fg := uint8(0x30), uint8(0xff)
	if f.Ambient {
		bg = 0x00
	}

	img := image.NewGray(image.Rect(0, 0, FrameWidth, FrameHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Gray{Y: bg}}, image.Point{}, draw.Src)

	centerY := FrameHeight / 2
	centered(img, centerY-40, f.Time, fg)
	centered(img, centerY-14, f.Date, fg)

	// separator
	for x := FrameWidth/2 - FrameWidth/6; x <= FrameWidth/2+FrameWidth/6; x++ {
		img.SetGray(x, centerY, color.Gray{Y: fg})
	}

	weatherLine := fmt.Sprintf("[%s]  %s  %s", strings.ToUpper(string(f.Icon)), f.HighTemp, f.LowTemp)
	centered(img, centerY+24, weatherLine, fg)
	centered(img, centerY+48, f.Updated, fg)
	return img
}

func centered(img *image.Gray, y int, s string, fg uint8) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{Y: fg}),
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(s).Round()
	d.Dot = fixed.P((FrameWidth-width)/2, y)
	d.DrawString(s)
}
