package lua

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/erhlee-bird/vector/api/v1/events"
	lua "github.com/yuin/gopher-lua"
)

// eventToTable converts an event into the table passed to hooks:
// {log = {...}} or {metric = {...}}.
func eventToTable(L *lua.LState, event events.Event) *lua.LTable {
	tbl := L.NewTable()
	switch e := event.(type) {
	case *events.LogEvent:
		tbl.RawSetString("log", mapToTable(L, e.Fields))
	case *events.Metric:
		tbl.RawSetString("metric", metricToTable(L, e))
	}
	return tbl
}

func metricToTable(L *lua.LState, m *events.Metric) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("name", lua.LString(m.Name))
	if m.Namespace != "" {
		tbl.RawSetString("namespace", lua.LString(m.Namespace))
	}
	tbl.RawSetString("kind", lua.LString(m.Kind))
	if !m.Timestamp.IsZero() {
		tbl.RawSetString("timestamp", lua.LString(m.Timestamp.Format(time.RFC3339Nano)))
	}
	if len(m.Tags) > 0 {
		tags := L.NewTable()
		for k, v := range m.Tags {
			tags.RawSetString(k, lua.LString(v))
		}
		tbl.RawSetString("tags", tags)
	}
	value := L.NewTable()
	value.RawSetString("value", lua.LNumber(m.Value))
	tbl.RawSetString(string(m.ValueType), value)
	return tbl
}

func mapToTable(L *lua.LState, fields map[string]any) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range fields {
		tbl.RawSetString(k, toLValue(L, v))
	}
	return tbl
}

func toLValue(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(v)
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case time.Time:
		return lua.LString(v.Format(time.RFC3339Nano))
	case map[string]any:
		return mapToTable(L, v)
	case []any:
		tbl := L.NewTable()
		for _, item := range v {
			tbl.Append(toLValue(L, item))
		}
		return tbl
	}
	return lua.LString(fmt.Sprint(v))
}

// tableToEvent converts a table emitted by a hook back into an event.
func tableToEvent(tbl *lua.LTable) (events.Event, error) {
	if log, ok := tbl.RawGetString("log").(*lua.LTable); ok {
		return events.NewLogEvent(tableToMap(log)), nil
	}
	if metric, ok := tbl.RawGetString("metric").(*lua.LTable); ok {
		return tableToMetric(metric)
	}
	return nil, fmt.Errorf("event must contain a log or metric table")
}

func tableToMetric(tbl *lua.LTable) (*events.Metric, error) {
	m := &events.Metric{
		Name:      lua.LVAsString(tbl.RawGetString("name")),
		Namespace: lua.LVAsString(tbl.RawGetString("namespace")),
		Kind:      events.MetricKind(lua.LVAsString(tbl.RawGetString("kind"))),
	}
	if m.Name == "" {
		return nil, fmt.Errorf("metric requires a name")
	}
	switch m.Kind {
	case "":
		m.Kind = events.MetricKindIncremental
	case events.MetricKindIncremental, events.MetricKindAbsolute:
	default:
		return nil, fmt.Errorf("unknown metric kind %q", m.Kind)
	}
	if ts := lua.LVAsString(tbl.RawGetString("timestamp")); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid metric timestamp %q: %w", ts, err)
		}
		m.Timestamp = t
	}
	if tags, ok := tbl.RawGetString("tags").(*lua.LTable); ok {
		m.Tags = map[string]string{}
		tags.ForEach(func(k, v lua.LValue) {
			m.Tags[lua.LVAsString(k)] = lua.LVAsString(v)
		})
	}

	found := false
	for _, vt := range []events.MetricValueType{events.MetricValueCounter, events.MetricValueGauge} {
		value, ok := tbl.RawGetString(string(vt)).(*lua.LTable)
		if !ok {
			continue
		}
		m.ValueType = vt
		m.Value = float64(lua.LVAsNumber(value.RawGetString("value")))
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("metric %q requires a counter or gauge value", m.Name)
	}
	return m, nil
}

func tableToMap(tbl *lua.LTable) map[string]any {
	fields := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		fields[lua.LVAsString(k)] = fromLValue(v)
	})
	return fields
}

func fromLValue(v lua.LValue) any {
	switch v := v.(type) {
	case lua.LString:
		return string(v)
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case *lua.LTable:
		if isArray(v) {
			items := make([]any, 0, v.Len())
			for i := 1; i <= v.Len(); i++ {
				items = append(items, fromLValue(v.RawGetInt(i)))
			}
			return items
		}
		return tableToMap(v)
	}
	return nil
}

// isArray reports whether a non-empty table only has the keys 1..n.
func isArray(tbl *lua.LTable) bool {
	n := tbl.Len()
	if n == 0 {
		return false
	}
	count := 0
	var keys []int
	tbl.ForEach(func(k, _ lua.LValue) {
		count++
		if num, ok := k.(lua.LNumber); ok {
			keys = append(keys, int(num))
		}
	})
	if count != n || len(keys) != n {
		return false
	}
	sort.Ints(keys)
	return keys[0] == 1 && keys[n-1] == n
}
