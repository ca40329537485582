package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Location 관측 지점
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country,omitempty"`
	Admin1    string  `json:"admin1,omitempty"` // 주/도
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
}

// Validate 위경도 범위 검증
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: fmt.Sprintf("%.4f out of range [-90, 90]", l.Latitude)}
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: fmt.Sprintf("%.4f out of range [-180, 180]", l.Longitude)}
	}
	return nil
}

// Observation 단일 관측값
// 결측값은 메모리에서 NaN, JSON 에서는 null
type Observation struct {
	Time  time.Time
	Value float64
}

// Missing 결측 여부
func (o Observation) Missing() bool {
	return math.IsNaN(o.Value)
}

type observationJSON struct {
	Time  time.Time `json:"time"`
	Value *float64  `json:"value"`
}

// MarshalJSON NaN 을 null 로 직렬화
func (o Observation) MarshalJSON() ([]byte, error) {
	out := observationJSON{Time: o.Time}
	if !o.Missing() {
		v := o.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON null 을 NaN 으로 역직렬화
func (o *Observation) UnmarshalJSON(data []byte) error {
	var in observationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	o.Time = in.Time
	if in.Value == nil {
		o.Value = math.NaN()
	} else {
		o.Value = *in.Value
	}
	return nil
}

// TimeSeries 단일 기상 변수의 시계열
// ⭐ SSOT: 엔진 입력 데이터 구조
type TimeSeries struct {
	Name     string        `json:"name"`
	Variable string        `json:"variable,omitempty"`
	Unit     string        `json:"unit,omitempty"`
	Location *Location     `json:"location,omitempty"`
	Points   []Observation `json:"points"`
}

// Len 관측 개수
func (s *TimeSeries) Len() int {
	return len(s.Points)
}

// Clone 깊은 복사 (엔진은 호출자 데이터를 변경하지 않음)
func (s *TimeSeries) Clone() *TimeSeries {
	out := *s
	out.Points = make([]Observation, len(s.Points))
	copy(out.Points, s.Points)
	if s.Location != nil {
		loc := *s.Location
		out.Location = &loc
	}
	return &out
}

// Validate 비어있지 않고 시간이 엄격히 증가하는지 검증
func (s *TimeSeries) Validate() error {
	if len(s.Points) == 0 {
		return &ValidationError{Field: "series", Reason: "no observations"}
	}
	for i, p := range s.Points {
		if p.Time.IsZero() {
			return &ValidationError{Field: "series", Reason: fmt.Sprintf("observation %d has zero timestamp", i)}
		}
		if math.IsInf(p.Value, 0) {
			return &ValidationError{Field: "series", Reason: fmt.Sprintf("observation %d is infinite", i)}
		}
		if i == 0 {
			continue
		}
		prev := s.Points[i-1].Time
		if p.Time.Equal(prev) {
			return &ValidationError{Field: "series", Reason: fmt.Sprintf("duplicate timestamp %s", p.Time.Format(time.RFC3339))}
		}
		if p.Time.Before(prev) {
			return &ValidationError{Field: "series", Reason: fmt.Sprintf("timestamps out of order at %d (%s after %s)",
				i, p.Time.Format(time.RFC3339), prev.Format(time.RFC3339))}
		}
	}
	return nil
}

// Times 타임스탬프 목록
func (s *TimeSeries) Times() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Time
	}
	return out
}

// Values 값 목록 (결측은 NaN)
func (s *TimeSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// MissingCount 결측 개수
func (s *TimeSeries) MissingCount() int {
	n := 0
	for _, p := range s.Points {
		if p.Missing() {
			n++
		}
	}
	return n
}

// NewTimeSeries 시간/값 슬라이스로부터 생성
func NewTimeSeries(name string, times []time.Time, values []float64) (*TimeSeries, error) {
	if len(times) != len(values) {
		return nil, &ValidationError{Field: "series", Reason: fmt.Sprintf("times (%d) and values (%d) differ in length", len(times), len(values))}
	}
	s := &TimeSeries{Name: name, Points: make([]Observation, len(times))}
	for i := range times {
		s.Points[i] = Observation{Time: times[i], Value: values[i]}
	}
	return s, nil
}
