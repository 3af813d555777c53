package metrics

import (
	"reflect"
	"testing"

	"github.com/satgroupe/fmb-gateway/pkg/tcpinfo"
)

func TestBuildFieldDescsFindsTaggedFields(t *testing.T) {
	descs := buildFieldDescs([]string{"imei", "session_id"})
	if len(descs) == 0 {
		t.Fatalf("buildFieldDescs returned no fields, want at least one tcpi-tagged field")
	}
}

func TestFieldValueHandlesNullable(t *testing.T) {
	unset := tcpinfo.NullableUint64{}
	if _, ok := fieldValue(reflect.ValueOf(unset)); ok {
		t.Errorf("fieldValue(unset Nullable) ok = true, want false")
	}

	set := tcpinfo.NullableUint64{Valid: true, Value: 42}
	v, ok := fieldValue(reflect.ValueOf(set))
	if !ok || v != 42 {
		t.Errorf("fieldValue(set Nullable) = (%v, %v), want (42, true)", v, ok)
	}
}
