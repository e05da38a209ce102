//go:build rp2040

package main

import (
	"errors"
	"machine"

	"filamux/core"
)

type spiBusConfig struct {
	spi  *machine.SPI
	sck  machine.Pin
	mosi machine.Pin
	miso machine.Pin
	name string
}

// Klipper's RP2040 bus names.
var spiBuses = map[core.SPIBusID]spiBusConfig{
	0: {spi: machine.SPI0, sck: machine.GPIO2, mosi: machine.GPIO3, miso: machine.GPIO0, name: "spi0a"},
	1: {spi: machine.SPI0, sck: machine.GPIO6, mosi: machine.GPIO7, miso: machine.GPIO4, name: "spi0b"},
	2: {spi: machine.SPI0, sck: machine.GPIO18, mosi: machine.GPIO19, miso: machine.GPIO16, name: "spi0c"},
	5: {spi: machine.SPI1, sck: machine.GPIO10, mosi: machine.GPIO11, miso: machine.GPIO8, name: "spi1a"},
	6: {spi: machine.SPI1, sck: machine.GPIO10, mosi: machine.GPIO11, miso: machine.GPIO12, name: "spi1b"},
}

// RPSPIDriver implements core.SPIDriver on the hardware SPI blocks.
type RPSPIDriver struct {
	buses map[core.SPIBusID]*spiBus
}

type spiBus struct {
	spi  *machine.SPI
	mode core.SPIMode
	rate uint32
}

func NewRPSPIDriver() *RPSPIDriver {
	return &RPSPIDriver{buses: make(map[core.SPIBusID]*spiBus)}
}

// ConfigureBus returns the existing handle when the settings are unchanged.
func (d *RPSPIDriver) ConfigureBus(cfg core.SPIConfig) (interface{}, error) {
	if bus, ok := d.buses[cfg.BusID]; ok && bus.mode == cfg.Mode && bus.rate == cfg.Rate {
		return bus, nil
	}
	bc, ok := spiBuses[cfg.BusID]
	if !ok {
		return nil, errors.New("spi: invalid bus id")
	}
	if cfg.Mode > 3 {
		return nil, errors.New("spi: invalid mode")
	}
	err := bc.spi.Configure(machine.SPIConfig{
		Frequency: cfg.Rate,
		SCK:       bc.sck,
		SDO:       bc.mosi,
		SDI:       bc.miso,
		Mode:      uint8(cfg.Mode),
	})
	if err != nil {
		return nil, err
	}
	bus := &spiBus{spi: bc.spi, mode: cfg.Mode, rate: cfg.Rate}
	d.buses[cfg.BusID] = bus
	return bus, nil
}

func (d *RPSPIDriver) Transfer(handle interface{}, tx, rx []byte) error {
	bus, ok := handle.(*spiBus)
	if !ok {
		return errors.New("spi: invalid bus handle")
	}
	if len(tx) != len(rx) {
		return errors.New("spi: tx and rx length differ")
	}
	return bus.spi.Tx(tx, rx)
}
