package metrics

import (
	"reflect"
	"testing"
)

func TestFlattenStatusCodes(t *testing.T) {
	tests := []struct {
		name  string
		codes map[string]int
		want  []StatusBucket
	}{
		{
			name:  "nil codes",
			codes: nil,
			want:  nil,
		},
		{
			name:  "empty codes",
			codes: map[string]int{},
			want:  nil,
		},
		{
			name:  "single code",
			codes: map[string]int{"200": 10},
			want: []StatusBucket{
				{Code: "200", Class: "2xx", Count: 10},
			},
		},
		{
			name:  "sorted by count desc",
			codes: map[string]int{"200": 10, "500": 5, "404": 20},
			want: []StatusBucket{
				{Code: "404", Class: "4xx", Count: 20},
				{Code: "200", Class: "2xx", Count: 10},
				{Code: "500", Class: "5xx", Count: 5},
			},
		},
		{
			name:  "tie breaking by code",
			codes: map[string]int{"503": 3, "200": 3, "302": 3},
			want: []StatusBucket{
				{Code: "200", Class: "2xx", Count: 3},
				{Code: "302", Class: "3xx", Count: 3},
				{Code: "503", Class: "5xx", Count: 3},
			},
		},
		{
			name:  "unparseable code",
			codes: map[string]int{"abc": 1},
			want: []StatusBucket{
				{Code: "abc", Class: "other", Count: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlattenStatusCodes(tt.codes)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenStatusCodes() = %v, want %v", got, tt.want)
			}
		})
	}
}
