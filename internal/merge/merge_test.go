package merge

import (
	"errors"
	"strings"
	"testing"
)

const existingController = `package com.acme.limit.controller;

import org.springframework.web.bind.annotation.RestController;
import org.springframework.web.bind.annotation.RequestMapping;

@RestController
@RequestMapping("/api/limit")
public class LimitController {

    private final LimitService limitService;

    @GetMapping("/list")
    public IPage<LimitVO> list(LimitQuery query) {
        return limitService.page(query);
    }
}
`

const incomingUnit = `package com.acme.limit.controller;

import org.springframework.web.bind.annotation.PostMapping;
import org.springframework.web.bind.annotation.RequestMapping;

@RestController
@RequestMapping("/api/limit")
public class LimitController {

    @PostMapping("/export")
    public void exportLimits(LimitQuery query) {
        limitService.export(query);
    }
}
`

func TestMergeAddsNewMember(t *testing.T) {
	merged, err := Merge(existingController, incomingUnit)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if !strings.Contains(merged, "exportLimits") {
		t.Error("expected new member to be inserted")
	}
	if !strings.Contains(merged, "import org.springframework.web.bind.annotation.PostMapping;") {
		t.Error("expected missing import to be merged")
	}
	if strings.Count(merged, "RequestMapping;") != 1 {
		t.Error("expected duplicate import to be dropped")
	}
	// New member lands before the unit's closing brace.
	if strings.LastIndex(merged, "exportLimits") > strings.LastIndex(merged, "}") {
		t.Error("member inserted outside the unit scope")
	}
	// Existing members survive untouched.
	if !strings.Contains(merged, "public IPage<LimitVO> list(LimitQuery query)") {
		t.Error("existing member was damaged")
	}
}

func TestMergeDropsDuplicateSignature(t *testing.T) {
	duplicate := `public class LimitController {

    @GetMapping("/list")
    public IPage<LimitVO> list(LimitQuery q) {
        return null;
    }
}
`
	merged, err := Merge(existingController, duplicate)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	// Same name and parameter shape, different parameter name: still a dup.
	if strings.Count(merged, "list(") != 1 {
		t.Errorf("expected duplicate member to be dropped:\n%s", merged)
	}
	if merged != existingController {
		t.Errorf("expected unchanged unit, got:\n%s", merged)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	once, err := Merge(existingController, incomingUnit)
	if err != nil {
		t.Fatalf("first Merge failed: %v", err)
	}
	twice, err := Merge(once, incomingUnit)
	if err != nil {
		t.Fatalf("second Merge failed: %v", err)
	}
	if once != twice {
		t.Errorf("merge is not idempotent:\nfirst:\n%s\nsecond:\n%s", once, twice)
	}
	if strings.Count(twice, "exportLimits") != 1 {
		t.Errorf("expected exactly one exportLimits member, got %d", strings.Count(twice, "exportLimits"))
	}
}

func TestMergeDistinguishesOverloads(t *testing.T) {
	overload := `public class LimitController {

    public IPage<LimitVO> list(LimitQuery query, Pageable page) {
        return null;
    }
}
`
	merged, err := Merge(existingController, overload)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if strings.Count(merged, "list(") != 2 {
		t.Errorf("expected overload with different parameter shape to be added:\n%s", merged)
	}
}

func TestMergeFields(t *testing.T) {
	withField := `public class LimitController {

    private final LimitService limitService;

    private final ExportClient exportClient;
}
`
	merged, err := Merge(existingController, withField)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if strings.Count(merged, "limitService;") != 1 {
		t.Error("expected existing field to be dropped as duplicate")
	}
	if !strings.Contains(merged, "exportClient;") {
		t.Error("expected new field to be inserted")
	}
}

func TestMergeRejectsUnitWithoutClosingBrace(t *testing.T) {
	_, err := Merge("public class Broken {", incomingUnit)
	if !errors.Is(err, ErrNoClosingBrace) {
		t.Errorf("expected ErrNoClosingBrace, got %v", err)
	}
}

func TestMergeIgnoresBracesInStringsAndComments(t *testing.T) {
	tricky := `public class LimitController {

    // a brace in a comment: }
    public String banner() {
        return "closing } brace";
    }
}
`
	merged, err := Merge(existingController, tricky)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !strings.Contains(merged, "banner()") {
		t.Error("expected banner member to be inserted")
	}
	if strings.Count(merged, "banner()") != 1 {
		t.Error("brace handling split the member")
	}
}
