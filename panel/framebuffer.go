package panel

import (
	"image"
	"image/color"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Sink is the display a Framebuffer flushes to. *ssd1306.Dev satisfies it.
type Sink interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// Framebuffer is a 1-bit in-memory screen that tinyfont can draw on. It
// implements drivers.Displayer; Display pushes the whole buffer to the sink.
type Framebuffer struct {
	img  *image1bit.VerticalLSB
	sink Sink
}

func NewFramebuffer(sink Sink) *Framebuffer {
	return &Framebuffer{
		img:  image1bit.NewVerticalLSB(sink.Bounds()),
		sink: sink,
	}
}

func (f *Framebuffer) Size() (x, y int16) {
	b := f.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

// SetPixel lights the pixel for any non-black color.
func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	if !image.Pt(int(x), int(y)).In(f.img.Bounds()) {
		return
	}
	f.img.SetBit(int(x), int(y), image1bit.Bit(c.R|c.G|c.B != 0))
}

func (f *Framebuffer) Pixel(x, y int) bool {
	return bool(f.img.BitAt(x, y))
}

func (f *Framebuffer) Clear() {
	for i := range f.img.Pix {
		f.img.Pix[i] = 0
	}
}

func (f *Framebuffer) Display() error {
	return f.sink.Draw(f.img.Bounds(), f.img, image.Point{})
}

// Lit counts the pixels that are on.
func (f *Framebuffer) Lit() int {
	n := 0
	b := f.img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if f.Pixel(x, y) {
				n++
			}
		}
	}
	return n
}
