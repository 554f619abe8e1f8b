package sems

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Brisbane")
	require.NoError(t, err)
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	require.NoError(t, err)
	return d
}

// portal returns a handler that logs in and answers path with body.
func portal(t *testing.T, path, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case testLoginPath:
			loginOK(w, "uid-1", "")
		case path:
			w.Write([]byte(body))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func TestFetchMissingStation(t *testing.T) {
	s, ct := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL.Path)
	})
	f := NewFetcher(s)

	_, err := f.FetchSnapshot(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingStation)
	_, err = f.FetchDailySeries(context.Background(), "", time.Now())
	require.ErrorIs(t, err, ErrMissingStation)

	assert.Equal(t, int32(0), ct.calls.Load())
	assert.False(t, s.Authenticated())
}

func TestFetchSnapshot(t *testing.T) {
	t.Run("HomeKit Shape", func(t *testing.T) {
		s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case testLoginPath:
				loginOK(w, "uid-1", "")
			case testDetailPath:
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "station-1", r.Form.Get("powerStationId"))
				assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
				w.Write([]byte(`{
					"hasError": false,
					"code": 0,
					"data": {
						"info": {"stationname": "Home"},
						"kpi": {"pac": 3.2, "power": "18.4", "total_power": 12345.6},
						"inverter": [{
							"model_type": "GW10K-ET",
							"status": 1,
							"invert_full": {"pv1_power": 1600, "pv2_power": "1500", "vac1": 240.1, "fac1": 50.02}
						}],
						"soc": {"power": 76},
						"homeKit": {"pCharge": 1.2, "pDisCharge": 0, "pGrid": 0, "pGridExport": 0.5, "pLoad": 1.5},
						"powerflow": {"pv": "9999(W)"}
					}
				}`))
			}
		})

		raw, err := NewFetcher(s).FetchSnapshot(context.Background(), "station-1")
		require.NoError(t, err)
		assert.Equal(t, "station-1", raw.StationID)
		assert.Equal(t, "Home", raw.StationName)
		assert.Equal(t, 3.2, raw.PacKW)
		assert.Equal(t, 18.4, raw.TodayKWH)
		assert.Equal(t, 12345.6, raw.TotalKWH)
		require.NotNil(t, raw.Inverter)
		assert.Equal(t, "GW10K-ET", raw.Inverter.Model)
		assert.Equal(t, "1", raw.Inverter.Status)
		assert.Equal(t, 1500.0, raw.Inverter.PV2W)
		assert.Equal(t, 240.1, raw.Inverter.GridVoltage)
		require.NotNil(t, raw.SOC)
		assert.Equal(t, 76.0, *raw.SOC)
		// homeKit wins over powerflow
		assert.Equal(t, StructuredPowerFlow{ChargeKW: 1.2, GridExportKW: 0.5, LoadKW: 1.5}, raw.PowerFlow)
	})

	t.Run("Powerflow Shape", func(t *testing.T) {
		s, _ := newTestSession(t, portal(t, testDetailPath, `{
			"hasError": false,
			"data": {
				"kpi": {"pac": 0},
				"homeKit": {},
				"powerflow": {
					"pv": "3266(W)",
					"bettery": "1200(W)", "betteryStatus": -1,
					"grid": "150(W)", "gridStatus": "1",
					"load": "4616(W)",
					"soc": 55
				}
			}
		}`))

		raw, err := NewFetcher(s).FetchSnapshot(context.Background(), "station-1")
		require.NoError(t, err)
		soc := 55.0
		assert.Equal(t, StringEncodedPowerFlow{
			PV:            "3266(W)",
			Battery:       "1200(W)",
			BatteryStatus: -1,
			Grid:          "150(W)",
			GridStatus:    1,
			Load:          "4616(W)",
			SOC:           &soc,
		}, raw.PowerFlow)
		assert.Nil(t, raw.SOC)
		assert.Nil(t, raw.Inverter)
	})

	t.Run("No Power Flow", func(t *testing.T) {
		s, _ := newTestSession(t, portal(t, testDetailPath, `{"hasError":false,"data":{"kpi":{"pac":null},"homeKit":null,"powerflow":{}}}`))
		raw, err := NewFetcher(s).FetchSnapshot(context.Background(), "station-1")
		require.NoError(t, err)
		assert.Equal(t, AbsentPowerFlow{}, raw.PowerFlow)
		assert.Equal(t, 0.0, raw.PacKW)
	})

	t.Run("Data Not An Object", func(t *testing.T) {
		s, _ := newTestSession(t, portal(t, testDetailPath, `{"hasError":false,"data":"nope"}`))
		raw, err := NewFetcher(s).FetchSnapshot(context.Background(), "station-1")
		require.NoError(t, err)
		assert.Equal(t, AbsentPowerFlow{}, raw.PowerFlow)
	})

	t.Run("Mistyped Member Keeps The Rest", func(t *testing.T) {
		s, _ := newTestSession(t, portal(t, testDetailPath, `{"hasError":false,"data":{"kpi":{"pac":2},"inverter":{"model_type":"x"}}}`))
		raw, err := NewFetcher(s).FetchSnapshot(context.Background(), "station-1")
		require.NoError(t, err)
		assert.Equal(t, 2.0, raw.PacKW)
		assert.Nil(t, raw.Inverter)
	})
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		msg     string
	}{
		{"upstream flag", http.StatusOK, `{"hasError":true,"code":1,"msg":"Station does not exist"}`, ErrUpstream, "Station does not exist"},
		{"empty body", http.StatusOK, "", ErrEmptyResponse, ""},
		{"whitespace body", http.StatusOK, "  \n", ErrEmptyResponse, ""},
		{"not json", http.StatusOK, "<html></html>", ErrMalformed, ""},
		{"null", http.StatusOK, "null", ErrMalformed, ""},
		{"truncated", http.StatusOK, `{"hasError":false,"data":{`, ErrMalformed, ""},
		{"bad status", http.StatusInternalServerError, `{}`, ErrUpstream, "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == testLoginPath {
					loginOK(w, "uid-1", "")
					return
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := NewFetcher(s).FetchSnapshot(context.Background(), "station-1")
			require.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.msg)
			assert.False(t, IsAuthError(err))
		})
	}

	t.Run("transport", func(t *testing.T) {
		s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
			loginOK(w, "uid-1", "http://127.0.0.1:1/api/")
		})
		_, err := NewFetcher(s).FetchSnapshot(context.Background(), "station-1")
		require.ErrorIs(t, err, ErrTransport)
	})
}

func TestFetchDailySeries(t *testing.T) {
	s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case testLoginPath:
			loginOK(w, "uid-1", "")
		case testChartPath:
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "station-1", r.Form.Get("id"))
			assert.Equal(t, "2024-01-15", r.Form.Get("date"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"hasError": false,
				"data": map[string]interface{}{
					"generateData": []map[string]interface{}{
						{"key": "Generation", "value": "21.7"},
						{"key": "Buy", "value": 3.1},
					},
					"lines": []map[string]interface{}{
						{"key": "PCurve_Power_PV", "xy": []map[string]interface{}{{"x": "00:05", "y": 0}, {"x": "12:00", "y": 4200.5}}},
						{"key": "PCurve_Power_Battery", "xy": []map[string]interface{}{{"x": "00:05", "y": 800}}},
						{"key": "PCurve_Power_Meter", "xy": []map[string]interface{}{{"x": "00:05", "y": -300}}},
						{"key": "PCurve_Power_Load", "xy": []map[string]interface{}{{"x": "00:05", "y": nil}}},
						{"key": "PCurve_Power_SOC", "xy": []map[string]interface{}{{"x": "00:05", "y": 64}}},
						{"key": "PCurve_Power_Unknown", "xy": []map[string]interface{}{{"x": "00:05", "y": 1}}},
					},
				},
			})
		}
	})

	// late in the UTC day, still the 15th in Brisbane
	day := mustDate(t, "2024-01-15").Add(23 * time.Hour)
	rs, err := NewFetcher(s).FetchDailySeries(context.Background(), "station-1", day)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", rs.Date)
	assert.Equal(t, 21.7, rs.GenerationKWH)
	assert.Len(t, rs.Lines, 5)
	assert.Equal(t, []RawPoint{{X: "00:05", Y: 0}, {X: "12:00", Y: 4200.5}}, rs.Lines[LinePV])
	assert.Equal(t, []RawPoint{{X: "00:05", Y: 800}}, rs.Lines[LineBattery])
	assert.Equal(t, []RawPoint{{X: "00:05", Y: 0}}, rs.Lines[LineLoad])
}

func TestFetchNonFiniteNumbers(t *testing.T) {
	t.Run("Snapshot", func(t *testing.T) {
		s, _ := newTestSession(t, portal(t, testDetailPath, `{
			"hasError": false,
			"data": {
				"kpi": {"pac": "NaN", "power": "Infinity"},
				"soc": {"power": "NaN"},
				"homeKit": {"pCharge": "Inf", "pDisCharge": "-Inf", "pGrid": "NaN", "pGridExport": 0.5, "pLoad": "Inf"}
			}
		}`))
		raw, err := NewFetcher(s).FetchSnapshot(context.Background(), "station-1")
		require.NoError(t, err)
		assert.Equal(t, 0.0, raw.PacKW)
		assert.Equal(t, 0.0, raw.TodayKWH)
		require.NotNil(t, raw.SOC)
		assert.Equal(t, 0.0, *raw.SOC)
		assert.Equal(t, StructuredPowerFlow{GridExportKW: 0.5}, raw.PowerFlow)
	})

	t.Run("Chart", func(t *testing.T) {
		s, _ := newTestSession(t, portal(t, testChartPath, `{
			"hasError": false,
			"data": {
				"generateData": [{"key": "Generation", "value": "NaN"}],
				"lines": [
					{"key": "PCurve_Power_PV", "xy": [{"x": "12:00", "y": "NaN"}, {"x": "12:05", "y": 100}]},
					{"key": "PCurve_Power_Load", "xy": [{"x": "12:00", "y": "-Infinity"}]}
				]
			}
		}`))
		rs, err := NewFetcher(s).FetchDailySeries(context.Background(), "station-1", mustDate(t, "2024-01-15"))
		require.NoError(t, err)
		assert.Equal(t, 0.0, rs.GenerationKWH)
		assert.Equal(t, []RawPoint{{X: "12:00", Y: 0}, {X: "12:05", Y: 100}}, rs.Lines[LinePV])
		assert.Equal(t, []RawPoint{{X: "12:00", Y: 0}}, rs.Lines[LineLoad])
	})
}

func TestListStations(t *testing.T) {
	for name, data := range map[string]string{
		"list":   `[{"id":"a","name":"Home","capacity":10,"eday":5}]`,
		"nested": `{"list":[{"powerstation_id":"a","stationname":"Home","nominal_power":"10","today_energy":5}]}`,
		"single": `{"id":"a","name":"Home","capacity":10,"eday":5}`,
	} {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestSession(t, portal(t, testListPath, `{"hasError":false,"data":`+data+`}`))
			stations, err := NewFetcher(s).ListStations(context.Background())
			require.NoError(t, err)
			require.Len(t, stations, 1)
			assert.Equal(t, "a", stations[0].ID)
			assert.Equal(t, "Home", stations[0].Name)
			assert.Equal(t, 10.0, stations[0].CapacityKW)
			assert.Equal(t, 5.0, stations[0].TodayKWH)
		})
	}
}
