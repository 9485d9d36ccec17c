package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Contour is a closed polygon; the last point connects back to the first.
type Contour []Point

type RegionContours struct {
	Region   string
	Contours []Contour
}

// ContourSet maps region ids to their contours and keeps insertion order.
// It encodes as a JSON object {"<region>": [[{x,y},...],...]}.
type ContourSet []RegionContours

func (s ContourSet) Get(region string) ([]Contour, bool) {
	for _, rc := range s {
		if rc.Region == region {
			return rc.Contours, true
		}
	}
	return nil, false
}

func (s ContourSet) Regions() []string {
	regions := make([]string, 0, len(s))
	for _, rc := range s {
		regions = append(regions, rc.Region)
	}
	return regions
}

// Count returns the total number of contours across regions.
func (s ContourSet) Count() int {
	n := 0
	for _, rc := range s {
		n += len(rc.Contours)
	}
	return n
}

func (s ContourSet) Clone() ContourSet {
	if s == nil {
		return nil
	}
	out := make(ContourSet, len(s))
	for i, rc := range s {
		contours := make([]Contour, len(rc.Contours))
		for j, c := range rc.Contours {
			contours[j] = append(Contour(nil), c...)
		}
		out[i] = RegionContours{Region: rc.Region, Contours: contours}
	}
	return out
}

func (s ContourSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, rc := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(rc.Region)
		if err != nil {
			return nil, err
		}
		contours := rc.Contours
		if contours == nil {
			contours = []Contour{}
		}
		value, err := json.Marshal(contours)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *ContourSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("contour set: expected object, got %v", tok)
	}

	out := ContourSet{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		region, ok := tok.(string)
		if !ok {
			return fmt.Errorf("contour set: expected region key, got %v", tok)
		}
		var contours []Contour
		if err := dec.Decode(&contours); err != nil {
			return fmt.Errorf("contour set: region %s: %w", region, err)
		}
		out = append(out, RegionContours{Region: region, Contours: contours})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}
