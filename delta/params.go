package delta

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// Parameter value type codes.
const (
	paramValStr = 0
	paramValInt = 1
	paramValFlt = 2
)

const paramStrLen = 16

// Param is one record from the file's parameter section.
type Param struct {
	Name      string
	ValType   int
	Str       string
	Num       float64
	UnitScale int
	Unit      Unit
}

// FloatVal returns the numeric value in base units.
func (p Param) FloatVal() float64 {
	v := p.Unit.ApplyScale(p.Num)
	if p.UnitScale != 0 {
		v *= math.Pow(10, float64(p.UnitScale))
	}
	return v
}

// acqParams collects the parameter-section values that calibration and
// digital-filter handling need.
type acqParams struct {
	sw          [maxDim]float64
	obs         [maxDim]float64
	car         [maxDim]float64
	temperature float64
	dfFlag      bool
	dfOrders    [maxDim]int
	dfFactors   [maxDim]int
	trVal       float64
}

// parseParamSection walks the parameter records that follow a 16-byte
// section header. Record layout: value at byte 16, value type at 32,
// name at 36.
func parseParamSection(buf []byte, bo binary.ByteOrder) []Param {
	if len(buf) < 16 {
		return nil
	}
	parmSize := int(bo.Uint32(buf[0:]))
	loID := int(bo.Uint32(buf[4:]))
	hiID := int(bo.Uint32(buf[8:]))
	if parmSize < 64 || hiID <= loID {
		return nil
	}

	var out []Param
	for i := 0; i < hiID-loID; i++ {
		off := 16 + i*parmSize
		if off+parmSize > len(buf) {
			break
		}
		rec := buf[off : off+parmSize]
		p := Param{
			Name:      readText(rec[36:64]),
			ValType:   int(bo.Uint32(rec[32:])),
			UnitScale: int(int16(bo.Uint16(rec[4:]))),
			Unit:      parseUnit(rec[6:8]),
		}
		switch p.ValType {
		case paramValStr:
			p.Str = readText(rec[16 : 16+paramStrLen])
		case paramValInt:
			p.Num = float64(int32(bo.Uint32(rec[16:])))
		case paramValFlt:
			p.Num = math.Float64frombits(bo.Uint64(rec[16:]))
		}
		out = append(out, p)
	}
	return out
}

func (a *acqParams) store(p Param) {
	dimChars := "XYZABCDE"
	name := strings.ToUpper(p.Name)

	switch name {
	case "TEMP_GET":
		t := p.FloatVal()
		if p.Unit.Type == unitCelsius {
			t += 273.0
		}
		a.temperature = t
		return
	case "TRANSITION_RATIO":
		a.trVal = p.FloatVal()
		return
	case "DIGITAL_FILTER":
		s := p.Str
		a.dfFlag = strings.HasPrefix(s, "T") || strings.HasPrefix(s, "t") || strings.HasPrefix(s, "1")
		return
	case "ORDERS":
		for i, tok := range strings.Fields(p.Str) {
			if i >= maxDim {
				break
			}
			a.dfOrders[i], _ = strconv.Atoi(tok)
		}
		return
	case "FACTORS":
		for i, tok := range strings.Fields(p.Str) {
			if i >= maxDim {
				break
			}
			a.dfFactors[i], _ = strconv.Atoi(tok)
		}
		return
	}

	for i := 0; i < maxDim; i++ {
		ch := string(dimChars[i])
		switch name {
		case ch + "_OFFSET":
			a.car[i] = p.FloatVal()
			return
		case ch + "_SWEEP":
			v := p.FloatVal()
			if p.UnitScale != 0 {
				v *= math.Pow(10, float64(p.UnitScale))
			}
			a.sw[i] = v
			return
		case ch + "_FREQ":
			a.obs[i] = 1e-6 * p.FloatVal()
			return
		}
	}
}

// computeGroupDelay derives the digital-filter group delay from the
// decimation stage ORDERS and FACTORS parameters.
func computeGroupDelay(orders, factors [maxDim]int) float64 {
	stages := orders[0]
	if stages <= 0 || stages >= maxDim {
		return 0
	}
	s := 0.0
	for i := 0; i < stages; i++ {
		p := 1.0
		for j := i; j < stages-1; j++ {
			p *= float64(factors[j])
		}
		if p == 0 {
			p = 1
		}
		s += float64(orders[i+1]-1) / p
	}
	lastFactor := float64(factors[stages-1])
	if lastFactor == 0 {
		return 0.5 * s
	}
	return 0.5 * s / lastFactor
}

// formatLabel builds a canonical axis label from the stored axis title:
// nucleus names become isotope labels and duplicate labels get a
// dimension suffix.
func formatLabel(titles [maxDim]string, dim, dimCount int) string {
	dimChars := "xyzabcde"
	lab := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return '_'
		}
		return r
	}, titles[dim])

	switch strings.ToLower(lab) {
	case "proton":
		lab = "1H"
	case "nitrogen":
		lab = "15N"
	case "carbon", "carbon13":
		lab = "13C"
	case "phosphorus", "phosphorus31":
		lab = "31P"
	}

	if dim == 0 && (lab == "1H" || lab == "H1") {
		for j := 0; j < dimCount; j++ {
			if j == dim {
				continue
			}
			other := strings.ToLower(titles[j])
			if other == "15n" || other == "n15" || other == "nitrogen" {
				lab = "HN"
				break
			}
		}
	}

	for j := 0; j < dimCount; j++ {
		if j == dim {
			continue
		}
		if strings.EqualFold(lab, titles[j]) {
			lab += string(dimChars[dim])
			break
		}
	}
	return lab
}
