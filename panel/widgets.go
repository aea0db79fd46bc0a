package panel

import (
	"image/color"
	"math"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

var (
	drawColor = color.RGBA{255, 255, 255, 255}
)

const (
	quadrantTopLeft = iota + 1
	quadrantTopRight
	quadrantBottomLeft
	quadrantBottomRight
)

// box is a rounded rectangle, inclusive on all edges.
type box struct {
	leftX, topY, rightX, bottomY, radius int16
}

// bar draws the outline of b and fills it from the left to fill percent.
func bar(d drivers.Displayer, b box, fill int) {
	for y := b.topY + b.radius; y <= b.bottomY-b.radius; y++ {
		d.SetPixel(b.leftX, y, drawColor)
		d.SetPixel(b.rightX, y, drawColor)
	}

	for x := b.leftX + b.radius; x <= b.rightX-b.radius; x++ {
		d.SetPixel(x, b.topY, drawColor)
		d.SetPixel(x, b.bottomY, drawColor)
	}

	drawCorner(d, b.leftX+b.radius, b.topY+b.radius, b.radius, quadrantTopLeft)
	drawCorner(d, b.rightX-b.radius, b.topY+b.radius, b.radius, quadrantTopRight)
	drawCorner(d, b.leftX+b.radius, b.bottomY-b.radius, b.radius, quadrantBottomLeft)
	drawCorner(d, b.rightX-b.radius, b.bottomY-b.radius, b.radius, quadrantBottomRight)

	if fill <= 0 {
		return
	}
	if fill > 100 {
		fill = 100
	}
	inner := int(b.rightX-b.leftX) - 1
	endX := b.leftX + int16(inner*fill/100)
	if endX <= b.leftX {
		endX = b.leftX + 1
	}
	for x := b.leftX + 1; x <= endX; x++ {
		var yStart, yEnd int16
		if x >= b.leftX+b.radius && x <= b.rightX-b.radius {
			yStart = b.topY + 1
			yEnd = b.bottomY - 1
		} else {
			var dx int16
			if x < b.leftX+b.radius {
				dx = (b.leftX + b.radius) - x
			} else {
				dx = x - (b.rightX - b.radius)
			}
			dy := int16(math.Ceil(math.Sqrt(float64(b.radius*b.radius - dx*dx))))
			yStart = (b.topY + b.radius) - dy + 1
			yEnd = (b.bottomY - b.radius) + dy - 1
		}
		for y := yStart; y <= yEnd; y++ {
			d.SetPixel(x, y, drawColor)
		}
	}
}

func drawCorner(d drivers.Displayer, centerX, centerY, radius int16, quadrant int) {
	for dx := int16(0); dx <= radius; dx++ {
		dy := int16(math.Round(math.Sqrt(float64(radius*radius - dx*dx))))
		switch quadrant {
		case quadrantTopRight:
			d.SetPixel(centerX+dx, centerY-dy, drawColor)
			d.SetPixel(centerX+dy, centerY-dx, drawColor)
		case quadrantTopLeft:
			d.SetPixel(centerX-dx, centerY-dy, drawColor)
			d.SetPixel(centerX-dy, centerY-dx, drawColor)
		case quadrantBottomLeft:
			d.SetPixel(centerX-dx, centerY+dy, drawColor)
			d.SetPixel(centerX-dy, centerY+dx, drawColor)
		case quadrantBottomRight:
			d.SetPixel(centerX+dx, centerY+dy, drawColor)
			d.SetPixel(centerX+dy, centerY+dx, drawColor)
		}
	}
}

// centerText writes text horizontally centered with its baseline at y.
func centerText(d drivers.Displayer, font *tinyfont.Font, text string, y int16) {
	w, _ := d.Size()
	_, outBox := tinyfont.LineWidth(font, text)
	x := (int(w) - int(outBox)) / 2
	if x < 0 {
		x = 0
	}
	tinyfont.WriteLine(d, font, int16(x), y, text, drawColor)
}
