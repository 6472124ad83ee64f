package metrics

import (
	"reflect"
	"testing"
)

func TestFlattenStatusCodes(t *testing.T) {
	tests := []struct {
		name  string
		codes map[int]int
		want  []StatusCount
	}{
		{name: "nil", codes: nil, want: nil},
		{name: "empty", codes: map[int]int{}, want: nil},
		{
			name:  "sorted by count then code",
			codes: map[int]int{500: 2, 200: 10, 404: 2},
			want:  []StatusCount{{Code: 200, Count: 10}, {Code: 404, Count: 2}, {Code: 500, Count: 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlattenStatusCodes(tt.codes); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenStatusCodes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlattenErrors(t *testing.T) {
	got := FlattenErrors(map[string]int{KindTimeout: 2, KindDNS: 2, KindTransport: 5})
	want := []ErrorCount{{KindTransport, 5}, {KindDNS, 2}, {KindTimeout, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FlattenErrors() = %v, want %v", got, want)
	}
}
