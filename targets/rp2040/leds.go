//go:build rp2040

package main

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ws2812"

	"filamux/modules"
)

// ledBrightness keeps the pixels readable without glare.
const ledBrightness = 0x30

// pixelRenderer shows each slot's LED pair on one WS2812 pixel: the red and
// green channels follow the red and green LED of the slot.
type pixelRenderer struct {
	dev ws2812.Device
	buf []color.RGBA
}

func newPixelRenderer(pin machine.Pin, pixels int) *pixelRenderer {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &pixelRenderer{dev: ws2812.New(pin), buf: make([]color.RGBA, pixels)}
}

func (r *pixelRenderer) Render(frame []modules.LEDPair) error {
	for i := range r.buf {
		c := color.RGBA{A: 0xff}
		if i < len(frame) {
			if frame[i].Red {
				c.R = ledBrightness
			}
			if frame[i].Green {
				c.G = ledBrightness
			}
		}
		r.buf[i] = c
	}
	return r.dev.WriteColors(r.buf)
}
