package audit

import "testing"

func TestShouldRecordIgnoredRoleBlocks(t *testing.T) {
	if ShouldRecord(NewRoleSet("111"), NewRoleSet("111", "222")) {
		t.Fatalf("ShouldRecord() = true, want false for ignored role 111")
	}
}

func TestShouldRecordMatchesEmptyIntersection(t *testing.T) {
	cases := []struct {
		name    string
		author  RoleSet
		ignored RoleSet
		want    bool
	}{
		{name: "no roles", author: NewRoleSet(), ignored: NewRoleSet("1"), want: true},
		{name: "nothing ignored", author: NewRoleSet("1", "2"), ignored: NewRoleSet(), want: true},
		{name: "disjoint", author: NewRoleSet("1", "2"), ignored: NewRoleSet("3"), want: true},
		{name: "one shared", author: NewRoleSet("1", "2", "3"), ignored: NewRoleSet("3", "4"), want: false},
		{name: "identical", author: NewRoleSet("5"), ignored: NewRoleSet("5"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldRecord(tc.author, tc.ignored); got != tc.want {
				t.Fatalf("ShouldRecord() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldRecordEventWithoutGuildAlwaysRecords(t *testing.T) {
	if !ShouldRecordEvent(false, NewRoleSet("111"), NewRoleSet("111")) {
		t.Fatalf("ShouldRecordEvent() = false, want true for direct message")
	}
	if ShouldRecordEvent(true, NewRoleSet("111"), NewRoleSet("111")) {
		t.Fatalf("ShouldRecordEvent() = true, want false inside guild")
	}
}

func TestParseRoleSet(t *testing.T) {
	set := ParseRoleSet(" 111, ,222 ,")
	if len(set) != 2 || !set.Contains("111") || !set.Contains("222") {
		t.Fatalf("ParseRoleSet() = %#v", set)
	}
	if len(ParseRoleSet("")) != 0 {
		t.Fatalf("ParseRoleSet(\"\") should be empty")
	}
}
