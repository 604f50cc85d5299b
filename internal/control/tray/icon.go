package tray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

const iconSize = 32

var (
	colorListening = color.RGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}
	colorPaused    = color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}
)

// icon returns the tray icon for the given listening state,
// encoded the way the platform's tray expects it.
func icon(listening bool) ([]byte, error) {
	c := colorPaused
	if listening {
		c = colorListening
	}

	b, err := renderIcon(c)
	if err != nil {
		return nil, err
	}

	if runtime.GOOS == "windows" {
		return wrapICO(b, iconSize), nil
	}

	return b, nil
}

// renderIcon draws a filled disc with a microphone shaped cut-out as PNG.
func renderIcon(c color.RGBA) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	center := float64(iconSize-1) / 2
	radius := float64(iconSize) / 2

	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-center, float64(y)-center
			if dx*dx+dy*dy > radius*radius {
				continue
			}

			if isMicrophone(x, y) {
				img.Set(x, y, color.White)
				continue
			}

			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode tray icon: %w", err)
	}

	return buf.Bytes(), nil
}

func isMicrophone(x, y int) bool {
	switch {
	case x >= 13 && x <= 18 && y >= 7 && y <= 18:
		// capsule
		return true
	case y == 22 && x >= 11 && x <= 20:
		// base
		return true
	case (x == 15 || x == 16) && y > 18 && y < 22:
		// stand
		return true
	}

	return false
}

// wrapICO embeds a PNG image into an ICO container.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer

	// ICONDIR
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})

	// ICONDIRENTRY
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		Width, Height, Colors, Reserved uint8
		Planes, BitCount                uint16
		Size, Offset                    uint32
	}{
		Width:    uint8(size),
		Height:   uint8(size),
		Planes:   1,
		BitCount: 32,
		Size:     uint32(len(pngData)),
		Offset:   6 + 16,
	})

	buf.Write(pngData)

	return buf.Bytes()
}
