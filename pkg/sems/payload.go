package sems

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// envelope is the wrapper around every SEMS response.
type envelope struct {
	HasError bool            `json:"hasError"`
	Code     json.RawMessage `json:"code"`
	Msg      string          `json:"msg"`
	Data     json.RawMessage `json:"data"`
	// only set on login, the regional API base URL
	API string `json:"api"`
}

// codeString returns the response code without quotes, "" when absent.
func codeString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

func codeOK(raw json.RawMessage) bool {
	c := codeString(raw)
	return c == "" || c == "0"
}

// isObject reports whether raw is a JSON object.
func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// decodeObject decodes raw into dest only when it is a JSON object. Anything
// else leaves dest untouched and returns false.
func decodeObject(raw []byte, dest any) bool {
	if !isObject(raw) {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// flexFloat decodes numbers that arrive as JSON numbers, numeric strings or
// null. Anything unparseable or non-finite ("NaN", "Inf") decodes to 0 so one
// bad field never fails a whole payload.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*f = 0
			return nil
		}
		s = strings.TrimSpace(str)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// flexString decodes strings and keeps the literal text of numbers. Other
// values decode to "".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0:
		*f = ""
	case b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*f = ""
			return nil
		}
		*f = flexString(str)
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*f = flexString(b)
	default:
		*f = ""
	}
	return nil
}

// PowerFlow is the part of the monitor detail payload that describes where
// power is flowing. The portal sends one of two shapes depending on the
// inverter family, or neither.
type PowerFlow interface {
	powerFlow()
}

// StructuredPowerFlow is the "homeKit" shape: unsigned magnitudes in kW with
// a separate field per direction.
type StructuredPowerFlow struct {
	ChargeKW     float64
	DischargeKW  float64
	GridImportKW float64
	GridExportKW float64
	LoadKW       float64
}

// StringEncodedPowerFlow is the "powerflow" shape: magnitudes as strings such
// as "3266(W)" with the direction in a status flag (1, -1 or 0).
type StringEncodedPowerFlow struct {
	PV            string
	Battery       string
	BatteryStatus int
	Grid          string
	GridStatus    int
	Load          string
	// nil when the shape carries no SOC
	SOC *float64
}

// AbsentPowerFlow is used when the payload has neither shape.
type AbsentPowerFlow struct{}

func (StructuredPowerFlow) powerFlow()    {}
func (StringEncodedPowerFlow) powerFlow() {}
func (AbsentPowerFlow) powerFlow()        {}

// InverterDetail is the first inverter listed for the station.
type InverterDetail struct {
	Model         string
	Status        string
	PV1W          float64
	PV2W          float64
	PV1V          float64
	PV2V          float64
	GridVoltage   float64
	GridFrequency float64
}

// RawSnapshot is the decoded monitor detail response. Values keep the
// portal's units: kpi power in kW and energy in kWh.
type RawSnapshot struct {
	StationID   string
	StationName string

	PacKW    float64
	TodayKWH float64
	TotalKWH float64

	// nil when the station reports no inverter
	Inverter *InverterDetail
	// nil when the payload has no soc block
	SOC *float64

	PowerFlow PowerFlow
}

type monitorDetail struct {
	Info struct {
		StationName flexString `json:"stationname"`
	} `json:"info"`
	KPI struct {
		Pac        flexFloat `json:"pac"`
		Power      flexFloat `json:"power"`
		TotalPower flexFloat `json:"total_power"`
	} `json:"kpi"`
	Inverter  []json.RawMessage `json:"inverter"`
	SOC       json.RawMessage   `json:"soc"`
	HomeKit   json.RawMessage   `json:"homeKit"`
	PowerFlow json.RawMessage   `json:"powerflow"`
}

type inverterPayload struct {
	ModelType  flexString `json:"model_type"`
	Status     flexString `json:"status"`
	InvertFull struct {
		PV1Power   flexFloat `json:"pv1_power"`
		PV2Power   flexFloat `json:"pv2_power"`
		PV1Voltage flexFloat `json:"pv1_voltage"`
		PV2Voltage flexFloat `json:"pv2_voltage"`
		Vac1       flexFloat `json:"vac1"`
		Fac1       flexFloat `json:"fac1"`
	} `json:"invert_full"`
}

type homeKitPayload struct {
	PCharge     flexFloat `json:"pCharge"`
	PDisCharge  flexFloat `json:"pDisCharge"`
	PGrid       flexFloat `json:"pGrid"`
	PGridExport flexFloat `json:"pGridExport"`
	PLoad       flexFloat `json:"pLoad"`
}

// the portal misspells battery
type powerFlowPayload struct {
	PV            flexString `json:"pv"`
	Bettery       flexString `json:"bettery"`
	BetteryStatus flexFloat  `json:"betteryStatus"`
	Grid          flexString `json:"grid"`
	GridStatus    flexFloat  `json:"gridStatus"`
	Load          flexString `json:"load"`
	SOC           *flexFloat `json:"soc"`
}

// nonEmptyObject reports whether raw is an object with at least one key.
func nonEmptyObject(raw []byte) bool {
	var m map[string]json.RawMessage
	return decodeObject(raw, &m) && len(m) > 0
}

// parseMonitorDetail decodes the data member of the monitor detail response.
// A data member that is not an object is treated as empty.
func parseMonitorDetail(stationID string, data json.RawMessage) RawSnapshot {
	var md monitorDetail
	if !decodeObject(data, &md) {
		// retry leniently, field by field, in case one member has the wrong type
		md = monitorDetail{}
		var fields map[string]json.RawMessage
		if decodeObject(data, &fields) {
			decodeObject(fields["info"], &md.Info)
			decodeObject(fields["kpi"], &md.KPI)
			_ = json.Unmarshal(fields["inverter"], &md.Inverter)
			md.SOC = fields["soc"]
			md.HomeKit = fields["homeKit"]
			md.PowerFlow = fields["powerflow"]
		}
	}

	raw := RawSnapshot{
		StationID:   stationID,
		StationName: string(md.Info.StationName),
		PacKW:       float64(md.KPI.Pac),
		TodayKWH:    float64(md.KPI.Power),
		TotalKWH:    float64(md.KPI.TotalPower),
		PowerFlow:   AbsentPowerFlow{},
	}

	if len(md.Inverter) > 0 {
		var inv inverterPayload
		if decodeObject(md.Inverter[0], &inv) {
			raw.Inverter = &InverterDetail{
				Model:         string(inv.ModelType),
				Status:        string(inv.Status),
				PV1W:          float64(inv.InvertFull.PV1Power),
				PV2W:          float64(inv.InvertFull.PV2Power),
				PV1V:          float64(inv.InvertFull.PV1Voltage),
				PV2V:          float64(inv.InvertFull.PV2Voltage),
				GridVoltage:   float64(inv.InvertFull.Vac1),
				GridFrequency: float64(inv.InvertFull.Fac1),
			}
		}
	}

	var soc struct {
		Power flexFloat `json:"power"`
	}
	if nonEmptyObject(md.SOC) && decodeObject(md.SOC, &soc) {
		v := float64(soc.Power)
		raw.SOC = &v
	}

	var hk homeKitPayload
	var pf powerFlowPayload
	switch {
	case nonEmptyObject(md.HomeKit) && decodeObject(md.HomeKit, &hk):
		raw.PowerFlow = StructuredPowerFlow{
			ChargeKW:     float64(hk.PCharge),
			DischargeKW:  float64(hk.PDisCharge),
			GridImportKW: float64(hk.PGrid),
			GridExportKW: float64(hk.PGridExport),
			LoadKW:       float64(hk.PLoad),
		}
	case nonEmptyObject(md.PowerFlow) && decodeObject(md.PowerFlow, &pf):
		sf := StringEncodedPowerFlow{
			PV:            string(pf.PV),
			Battery:       string(pf.Bettery),
			BatteryStatus: int(pf.BetteryStatus),
			Grid:          string(pf.Grid),
			GridStatus:    int(pf.GridStatus),
			Load:          string(pf.Load),
		}
		if pf.SOC != nil {
			v := float64(*pf.SOC)
			sf.SOC = &v
		}
		raw.PowerFlow = sf
	}
	return raw
}

// Chart line keys.
const (
	LinePV      = "PCurve_Power_PV"
	LineBattery = "PCurve_Power_Battery"
	LineMeter   = "PCurve_Power_Meter"
	LineLoad    = "PCurve_Power_Load"
	LineSOC     = "PCurve_Power_SOC"
)

// RawPoint is one chart sample. X is the station-local "HH:MM" time.
type RawPoint struct {
	X string
	Y float64
}

// RawSeries is the decoded power chart for one day. Values keep the chart's
// sign convention: battery positive when discharging and meter negative when
// importing.
type RawSeries struct {
	StationID string
	// YYYY-MM-DD
	Date  string
	Lines map[string][]RawPoint
	// the "Generation" entry of the day summary, in kWh
	GenerationKWH float64
}

type powerChart struct {
	Lines []struct {
		Key string `json:"key"`
		XY  []struct {
			X flexString `json:"x"`
			Y flexFloat  `json:"y"`
		} `json:"xy"`
	} `json:"lines"`
	GenerateData []struct {
		Key   string    `json:"key"`
		Value flexFloat `json:"value"`
	} `json:"generateData"`
}

func parsePowerChart(stationID, date string, data json.RawMessage) (RawSeries, error) {
	rs := RawSeries{
		StationID: stationID,
		Date:      date,
		Lines:     map[string][]RawPoint{},
	}
	if !isObject(data) {
		return rs, nil
	}
	var pc powerChart
	if err := json.Unmarshal(data, &pc); err != nil {
		return RawSeries{}, err
	}
	for _, g := range pc.GenerateData {
		if g.Key == "Generation" {
			rs.GenerationKWH = float64(g.Value)
		}
	}
	for _, line := range pc.Lines {
		switch line.Key {
		case LinePV, LineBattery, LineMeter, LineLoad, LineSOC:
		default:
			continue
		}
		points := make([]RawPoint, 0, len(line.XY))
		for _, xy := range line.XY {
			points = append(points, RawPoint{X: string(xy.X), Y: float64(xy.Y)})
		}
		rs.Lines[line.Key] = append(rs.Lines[line.Key], points...)
	}
	return rs, nil
}

// Station is one power station visible to the account.
type Station struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	CapacityKW float64 `json:"capacityKW"`
	TodayKWH   float64 `json:"todayKWH"`
	TotalKWH   float64 `json:"totalKWH"`
}

type stationPayload struct {
	ID             flexString `json:"id"`
	PowerStationID flexString `json:"powerstation_id"`
	Name           flexString `json:"name"`
	StationName    flexString `json:"stationname"`
	Status         flexString `json:"status"`
	Capacity       *flexFloat `json:"capacity"`
	NominalPower   flexFloat  `json:"nominal_power"`
	TodayEnergy    *flexFloat `json:"today_energy"`
	EDay           flexFloat  `json:"eday"`
	TotalEnergy    *flexFloat `json:"total_energy"`
	ETotal         flexFloat  `json:"etotal"`
}

func firstString(vals ...flexString) string {
	for _, v := range vals {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

func firstFloat(primary *flexFloat, fallback flexFloat) float64 {
	if primary != nil {
		return float64(*primary)
	}
	return float64(fallback)
}

// parseStations accepts the list either as data itself, as data.list or
// data.plants, or a single station object.
func parseStations(data json.RawMessage) ([]Station, error) {
	var list []json.RawMessage
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
	case isObject(trimmed):
		var wrapper struct {
			List   []json.RawMessage `json:"list"`
			Plants []json.RawMessage `json:"plants"`
			ID     json.RawMessage   `json:"id"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, err
		}
		switch {
		case len(wrapper.List) > 0:
			list = wrapper.List
		case len(wrapper.Plants) > 0:
			list = wrapper.Plants
		case len(wrapper.ID) > 0:
			list = []json.RawMessage{trimmed}
		}
	}

	stations := make([]Station, 0, len(list))
	for _, item := range list {
		var sp stationPayload
		if !decodeObject(item, &sp) {
			continue
		}
		name := firstString(sp.Name, sp.StationName)
		if name == "" {
			name = "Unknown"
		}
		stations = append(stations, Station{
			ID:         firstString(sp.ID, sp.PowerStationID),
			Name:       name,
			Status:     string(sp.Status),
			CapacityKW: firstFloat(sp.Capacity, sp.NominalPower),
			TodayKWH:   firstFloat(sp.TodayEnergy, sp.EDay),
			TotalKWH:   firstFloat(sp.TotalEnergy, sp.ETotal),
		})
	}
	return stations, nil
}
