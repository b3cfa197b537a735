package graphs

import (
	"errors"
	"math"
	"testing"
)

func TestRootWithOutgroup(t *testing.T) {
	testCases := []struct {
		name        string
		tre         string
		outgroup    []string
		strict      bool
		expected    string
		approximate bool
		cladeSize   int
		expectedErr error
	}{
		{
			name:      "clade outgroup",
			tre:       "((A:1,B:2):0.5,C:3,(D:1,E:1):2);",
			outgroup:  []string{"D", "E"},
			expected:  "((D:1.0,E:1.0):1.0,((A:1.0,B:2.0):0.5,C:3.0):1.0);",
			cladeSize: 2,
		},
		{
			name:      "single leaf on root",
			tre:       "((A:1,B:2):0.5,C:3,(D:1,E:1):2);",
			outgroup:  []string{"C"},
			expected:  "(C:1.5,((A:1.0,B:2.0):0.5,(D:1.0,E:1.0):2.0):1.5);",
			cladeSize: 1,
		},
		{
			name:      "single leaf below root",
			tre:       "((A:1,B:2):0.5,C:3,(D:1,E:1):2);",
			outgroup:  []string{"A"},
			expected:  "(A:0.5,(B:2.0,(C:3.0,(D:1.0,E:1.0):2.0):0.5):0.5);",
			cladeSize: 1,
		},
		{
			name:      "complement side",
			tre:       "((A:1,B:2):0.5,C:3,(D:1,E:1):2);",
			outgroup:  []string{"A", "B", "C"},
			expected:  "((D:1.0,E:1.0):1.0,((A:1.0,B:2.0):0.5,C:3.0):1.0);",
			cladeSize: 3,
		},
		{
			name:      "rooted input, old root spliced",
			tre:       "((A:1,B:1):1,(C:1,D:1):1);",
			outgroup:  []string{"A"},
			expected:  "(A:0.5,(B:1.0,(C:1.0,D:1.0):2.0):0.5);",
			cladeSize: 1,
		},
		{
			name:      "already rooted on outgroup",
			tre:       "((A:1,B:1):1,(C:1,D:1):1);",
			outgroup:  []string{"C", "D"},
			expected:  "((A:1.0,B:1.0):1.0,(C:1.0,D:1.0):1.0);",
			cladeSize: 2,
		},
		{
			name:        "not monophyletic",
			tre:         "((A:1,B:2):0.5,C:3,(D:1,E:1):2);",
			outgroup:    []string{"A", "C"},
			expected:    "((D:1.0,E:1.0):1.0,((A:1.0,B:2.0):0.5,C:3.0):1.0);",
			approximate: true,
			cladeSize:   3,
		},
		{
			name:        "not monophyletic strict",
			tre:         "((A:1,B:2):0.5,C:3,(D:1,E:1):2);",
			outgroup:    []string{"A", "C"},
			strict:      true,
			expectedErr: ErrOutgroupNotMonophyletic,
		},
		{
			name:        "unknown taxon",
			tre:         "((A:1,B:2):0.5,C:3,(D:1,E:1):2);",
			outgroup:    []string{"Z"},
			expectedErr: ErrUnknownTaxon,
		},
		{
			name:        "empty outgroup",
			tre:         "((A:1,B:2):0.5,C:3,(D:1,E:1):2);",
			outgroup:    nil,
			expectedErr: ErrInvalidOutgroup,
		},
		{
			name:        "every taxon",
			tre:         "(A:1,B:2,C:3);",
			outgroup:    []string{"A", "B", "C"},
			expectedErr: ErrInvalidOutgroup,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			tre, err := Decode(test.tre)
			if err != nil {
				t.Fatalf("%s cannot be parsed as newick. Test case is written incorrectly", test.tre)
			}
			before := tre.Clone()
			result, err := tre.RootWithOutgroup(test.outgroup, test.strict)
			switch {
			case err != nil && !errors.Is(err, test.expectedErr):
				t.Fatalf("test returned unexpected err %s", err)
			case err != nil:
				t.Logf("%s", err)
				return
			case test.expectedErr != nil:
				t.Fatalf("expected error %s, got none", test.expectedErr)
			}
			if nwk := Encode(tre, EncodeOptions{Precision: 1}); nwk != test.expected {
				t.Errorf("result != expected, %s != %s", nwk, test.expected)
			}
			if result.Approximate != test.approximate {
				t.Errorf("approximate = %t, expected %t", result.Approximate, test.approximate)
			}
			if result.CladeSize != test.cladeSize {
				t.Errorf("clade size = %d, expected %d", result.CladeSize, test.cladeSize)
			}
			leaves := before.TipNames()
			for i := range leaves {
				for j := i + 1; j < len(leaves); j++ {
					d1, _ := before.PathLength(leaves[i], leaves[j])
					d2, err := tre.PathLength(leaves[i], leaves[j])
					if err != nil {
						t.Fatal(err)
					}
					if math.Abs(d1-d2) > 1e-9 {
						t.Errorf("distance %s-%s changed by rooting, %f != %f", leaves[i], leaves[j], d1, d2)
					}
				}
			}
		})
	}
}
