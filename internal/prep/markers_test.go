package prep

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestReadMarkers(t *testing.T) {
	testCases := []struct {
		name        string
		data        string
		expected    []string
		expectedErr error
	}{
		{
			name: "plink bim",
			data: "1\t1:1000\t0\t1000\tA\tG\n" +
				"1\t1:2000\t0\t2000\tC\tT\n" +
				"2\t2:1500\t0\t1500\tG\tA\n",
			expected: []string{"1:1000", "1:2000", "2:1500"},
		},
		{
			name:     "single column",
			data:     "rs100\nrs200\n\nrs300\n",
			expected: []string{"rs100", "rs200", "rs300"},
		},
		{
			name:     "comma separated",
			data:     "1,m1,0,10\n1,m2,0,20\n2,m3,0,30\n",
			expected: []string{"m1", "m2", "m3"},
		},
		{
			name:     "space separated",
			data:     "1 m1 0 10\n1 m2 0 20\n",
			expected: []string{"m1", "m2"},
		},
		{
			name:        "empty",
			data:        "\n\n",
			expectedErr: ErrInvalidFile,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			markers, err := ReadMarkers(strings.NewReader(test.data))
			if !errors.Is(err, test.expectedErr) {
				t.Fatalf("unexpected error %v", err)
			} else if err != nil {
				return
			}
			if !reflect.DeepEqual(markers, test.expected) {
				t.Errorf("markers %v, expected %v", markers, test.expected)
			}
		})
	}
}
