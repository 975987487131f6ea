package cdp

import (
	"testing"

	"github.com/argus-dev/argus/internal/model"
)

func TestMatchTargetEmptyMatchReturnsFirst(t *testing.T) {
	targets := []TargetInfo{{ID: "a"}, {ID: "b"}}
	got, err := MatchTarget(targets, &model.TargetMatch{})
	if err != nil || got.ID != "a" {
		t.Fatalf("got %+v, err %v; want first target", got, err)
	}
}

func TestMatchTargetByTargetIDBypassesOtherPredicates(t *testing.T) {
	targets := []TargetInfo{
		{ID: "a", URL: "https://a.example"},
		{ID: "b", URL: "https://b.example"},
	}
	got, err := MatchTarget(targets, &model.TargetMatch{TargetID: "b", URLContains: "a.example"})
	if err != nil || got.ID != "b" {
		t.Fatalf("got %+v, err %v; want targetId bypass to b", got, err)
	}
}

func TestMatchTargetByURLContainsAndType(t *testing.T) {
	targets := []TargetInfo{
		{ID: "a", Type: "background_page", URL: "https://app.example/worker"},
		{ID: "b", Type: "page", URL: "https://app.example/index"},
	}
	got, err := MatchTarget(targets, &model.TargetMatch{URLContains: "app.example", Type: "page"})
	if err != nil || got.ID != "b" {
		t.Fatalf("got %+v, err %v; want page target b", got, err)
	}
}

func TestMatchTargetNoMatchReturnsNoMatchCode(t *testing.T) {
	targets := []TargetInfo{{ID: "a", URL: "https://a.example"}}
	_, err := MatchTarget(targets, &model.TargetMatch{URLContains: "nope"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestMatchTargetByParentURLContains(t *testing.T) {
	targets := []TargetInfo{
		{ID: "parent", URL: "https://app.example/top"},
		{ID: "child", URL: "https://iframe.example/embed", ParentID: "parent"},
	}
	got, err := MatchTarget(targets, &model.TargetMatch{ParentURLContains: "app.example"})
	if err != nil || got.ID != "child" {
		t.Fatalf("got %+v, err %v; want child matched via parent", got, err)
	}
}

func TestMatchTargetOnEmptyTargetList(t *testing.T) {
	if _, err := MatchTarget(nil, &model.TargetMatch{}); err == nil {
		t.Fatal("expected an error for empty target list")
	}
}
