// Package ui hosts the ebiten-backed presenter: the part of spec §5's
// "host thread" that blits the PPU's framebuffer, samples the keyboard into
// Joyp* button state once per frame, and forwards pause/reset/fullscreen
// controls. Everything about CPU/PPU/bus timing lives in internal/emu; this
// package only ever touches the Machine through its presenter-facing API.
package ui

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// App implements ebiten.Game around a *emu.Machine.
type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image

	paused bool
	fast   bool // Tab held: step extra frames per Update to fast-forward

	toastMsg   string
	toastUntil time.Time
}

// NewApp wires a presenter around an already-constructed Machine. The
// Machine may or may not have a cartridge loaded yet; the caller (cmd/gbemu)
// owns ROM selection, since browsing the filesystem for ROMs is outside
// this spec's subject (§1).
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	if m != nil {
		if t := m.ROMTitle(); t != "" {
			ebiten.SetWindowTitle(cfg.Title + " - [" + t + "]")
		}
	}
	return &App{cfg: cfg, m: m}
}

// Run starts the ebiten game loop.
func (a *App) Run() error { return ebiten.RunGame(a) }

// Update samples input and advances emulation by one or more frames.
func (a *App) Update() error {
	var btn emu.Buttons
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		btn.Right = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		btn.Left = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		btn.Up = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		btn.Down = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyZ) {
		btn.A = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyX) {
		btn.B = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyEnter) {
		btn.Start = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
		btn.Select = true
	}
	a.m.SetButtons(btn)

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		a.m.ResetPostBoot()
		a.toast("Reset")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		a.m.ResetWithBoot()
		a.toast("Reset (boot ROM)")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF2) {
		if err := a.saveScreenshot(); err != nil {
			a.toast("Screenshot failed: " + err.Error())
		} else {
			a.toast("Screenshot saved")
		}
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	switch {
	case a.paused:
		if inpututil.IsKeyJustPressed(ebiten.KeyN) {
			a.m.StepFrame()
		}
	case a.fast:
		for i := 0; i < 4; i++ {
			a.m.StepFrame()
		}
	default:
		a.m.StepFrame()
	}
	return nil
}

// Draw blits the machine's RGBA framebuffer and any toast/lockup overlay.
func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)

	if a.m.CPULocked() {
		ebitenutil.DebugPrintAt(screen, "CPU locked (unallocated opcode)", 4, 4)
	}
	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 4, 4)
	}
}

// Layout keeps the logical resolution fixed at the DMG's native 160x144;
// ebiten handles the scale-up to the window size set in NewApp.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) { return 160, 144 }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) saveScreenshot() error {
	fb := a.m.Framebuffer()
	img := &image.RGBA{
		Pix:    append([]byte(nil), fb...),
		Stride: 4 * 160,
		Rect:   image.Rect(0, 0, 160, 144),
	}
	name := fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
