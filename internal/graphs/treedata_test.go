package graphs

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/evolbioinfo/gotree/io/newick"
)

func TestMakeTreeData(t *testing.T) {
	testCases := []struct {
		name        string
		tre         string
		leafset     map[string]string
		expectedErr error
	}{
		{
			name: "basic",
			tre:  "((((A,B)a,C)b,D)c,F)r;",
			leafset: map[string]string{
				"a": "{A,B}",
				"b": "{A,B,C}",
				"c": "{A,B,C,D}",
				"r": "{A,B,C,D,F}",
			},
		},
		{
			name:        "duplicate labels",
			tre:         "((A,B),(A,C));",
			expectedErr: ErrDuplicateTaxon,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			tre, err := Decode(test.tre)
			if err != nil {
				t.Fatal("invalid newick tree; test is written wrong")
			}
			td, err := MakeTreeData(tre)
			if !errors.Is(err, test.expectedErr) {
				t.Fatalf("unexpected error %v", err)
			} else if err != nil {
				return
			}
			for _, n := range tre.PreOrder() {
				expected, ok := test.leafset[tre.Nodes[n].Name]
				if !ok {
					continue
				}
				if ls := td.LeafsetAsString(n); ls != expected {
					t.Errorf("leafset of %s = %s, expected %s", tre.Nodes[n].Name, ls, expected)
				}
				if int(td.NumLeavesBelow[n]) != strings.Count(expected, ",")+1 {
					t.Errorf("leaves below %s = %d", tre.Nodes[n].Name, td.NumLeavesBelow[n])
				}
			}
		})
	}
}

func TestSplits(t *testing.T) {
	testCases := []struct {
		name    string
		tre     string
		splits  []string
		lengths []float64
	}{
		{
			name:    "unrooted",
			tre:     "((A:1,B:1):0.5,(C:1,D:1):0.25,E:1);",
			splits:  []string{"{C,D,E}|{A,B}", "{C,D}|{A,B,E}"},
			lengths: []float64{0.5, 0.25},
		},
		{
			name:    "bifurcating root reported once",
			tre:     "((A:1,B:1):1,(C:1,D:1):2);",
			splits:  []string{"{C,D}|{A,B}"},
			lengths: []float64{3},
		},
		{
			name:    "star",
			tre:     "(A,B,C,D);",
			splits:  []string{},
			lengths: []float64{},
		},
		{
			name:    "nested",
			tre:     "(A,(B,(C,(D,E))));",
			splits:  []string{"{C,D,E}|{A,B}", "{D,E}|{A,B,C}"},
			lengths: []float64{NoLength, NoLength},
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			tre, err := Decode(test.tre)
			if err != nil {
				t.Fatal("invalid newick tree; test is written wrong")
			}
			td, err := MakeTreeData(tre)
			if err != nil {
				t.Fatal(err)
			}
			splits := td.Splits()
			names, lengths := make([]string, 0), make([]float64, 0)
			for _, s := range splits {
				names = append(names, s.String(td.Taxa))
				lengths = append(lengths, s.Length)
			}
			if !reflect.DeepEqual(names, test.splits) {
				t.Errorf("splits %v != %v", names, test.splits)
			}
			if !reflect.DeepEqual(lengths, test.lengths) {
				t.Errorf("lengths %v != %v", lengths, test.lengths)
			}
		})
	}
}

func TestSplitCompatible(t *testing.T) {
	taxa := []string{"A", "B", "C", "D", "E", "F"}
	split := func(names ...string) Split {
		tre := NewTree()
		tre.Root = tre.NewNode("")
		for _, name := range taxa {
			tre.AddChild(tre.Root, tre.NewNode(name), NoLength)
		}
		td, err := MakeTreeDataWithTaxa(tre, taxa)
		if err != nil {
			t.Fatal(err)
		}
		bs, err := td.TaxaToBitset(names)
		if err != nil {
			t.Fatal(err)
		}
		return NewSplit(bs)
	}
	testCases := []struct {
		name       string
		s1, s2     Split
		compatible bool
	}{
		{name: "nested", s1: split("B", "C"), s2: split("B", "C", "D"), compatible: true},
		{name: "disjoint", s1: split("B", "C"), s2: split("D", "E"), compatible: true},
		{name: "complement nested", s1: split("A", "B"), s2: split("E", "F"), compatible: true},
		{name: "overlap", s1: split("B", "C"), s2: split("C", "D"), compatible: false},
		{name: "overlap through complement", s1: split("A", "B", "C"), s2: split("C", "D"), compatible: false},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			if c := test.s1.Compatible(test.s2); c != test.compatible {
				t.Errorf("compatible = %t, expected %t (%s, %s)", c, test.compatible,
					test.s1.String(taxa), test.s2.String(taxa))
			}
			if test.s1.Compatible(test.s2) != test.s2.Compatible(test.s1) {
				t.Error("compatibility is not symmetric")
			}
		})
	}
}

func TestFromGotree(t *testing.T) {
	testCases := []struct {
		name     string
		nwk      string
		expected string
	}{
		{
			name:     "lengths and supports",
			nwk:      "((A:1,B:2)0.9:0.5,C:3,(D:1,E:1):2);",
			expected: "((A:1.00000,B:2.00000)0.90:0.50000,C:3.00000,(D:1.00000,E:1.00000):2.00000);",
		},
		{
			name:     "no lengths",
			nwk:      "((A,B),(C,D));",
			expected: "((A,B),(C,D));",
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			gt, err := newick.NewParser(strings.NewReader(test.nwk)).Parse()
			if err != nil {
				t.Fatalf("%s cannot be parsed as newick. Test case is written incorrectly", test.nwk)
			}
			tre := FromGotree(gt)
			if result := tre.Newick(); result != test.expected {
				t.Errorf("result != expected, %s != %s", result, test.expected)
			}
			ours, err := Decode(test.nwk)
			if err != nil {
				t.Fatal(err)
			}
			if ours.Newick() != tre.Newick() {
				t.Errorf("gotree conversion and decoder disagree, %s != %s", tre.Newick(), ours.Newick())
			}
		})
	}
}
