package cliapp

import (
	"context"
	"fmt"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/argus-dev/argus/internal/domops"
)

func addSelectorFlags(cmd *orpheus.Command) {
	cmd.AddFlag("selector", "s", "", "CSS selector")
	cmd.AddFlag("testid", "", "", `Shorthand for --selector [data-testid="..."]`)
	cmd.AddBoolFlag("all", "", false, "Act on every match instead of requiring exactly one")
	cmd.AddFlag("text", "", "", `Narrow matches by text, literal or "/pattern/flags" regex`)
}

func selectorFrom(ctx *orpheus.Context) domops.Selector {
	sel := ctx.GetFlagString("selector")
	if sel == "" {
		if testid := ctx.GetFlagString("testid"); testid != "" {
			sel = fmt.Sprintf(`[data-testid="%s"]`, testid)
		}
	}
	return domops.Selector{Selector: sel, All: ctx.GetFlagBool("all"), Text: ctx.GetFlagString("text")}
}

// restArgs reads trailing positional args starting at index skip until
// the first empty one (spec.md §6 positional args after [id] and any
// fixed leading args a subcommand already consumed).
func restArgs(ctx *orpheus.Context, skip, max int) []string {
	out := make([]string, 0, max)
	for i := skip; i < skip+max; i++ {
		v := ctx.GetArg(i)
		if v == "" {
			break
		}
		out = append(out, v)
	}
	return out
}

func (m *Manager) setupDomCommands() {
	domCmd := orpheus.NewCommand("dom", "Inspect and manipulate the attached page's DOM")

	treeCmd := domCmd.Subcommand("tree", "Print a selector's subtree", m.handleDomTree)
	addSelectorFlags(treeCmd)
	treeCmd.AddIntFlag("depth", "d", 0, "Maximum subtree depth (0 = unlimited)")
	treeCmd.AddIntFlag("max-nodes", "", 0, "Maximum nodes to emit")
	treeCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	infoCmd := domCmd.Subcommand("info", "Print a selector's attributes/box model/outerHTML", m.handleDomInfo)
	addSelectorFlags(infoCmd)
	infoCmd.AddIntFlag("outer-html-max-chars", "", 0, "Truncate outerHTML to this many characters")
	infoCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	hoverCmd := domCmd.Subcommand("hover", "Move the mouse to a selector or point", m.handleDomHover)
	addSelectorFlags(hoverCmd)
	hoverCmd.AddFlag("x", "", "", "Viewport/offset x")
	hoverCmd.AddFlag("y", "", "", "Viewport/offset y")
	hoverCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	clickCmd := domCmd.Subcommand("click", "Click a selector or point", m.handleDomClick)
	addSelectorFlags(clickCmd)
	clickCmd.AddFlag("x", "", "", "Viewport/offset x")
	clickCmd.AddFlag("y", "", "", "Viewport/offset y")
	clickCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	focusCmd := domCmd.Subcommand("focus", "Focus a selector", m.handleDomFocus)
	addSelectorFlags(focusCmd)
	focusCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	keydownCmd := domCmd.Subcommand("keydown", "Dispatch a key press", m.handleDomKeyDown)
	addSelectorFlags(keydownCmd)
	keydownCmd.AddFlag("modifiers", "", "", "Comma list: alt,ctrl,meta,shift")
	keydownCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	addCmd := domCmd.Subcommand("add", "Insert HTML or text adjacent to a selector", m.handleDomAdd)
	addSelectorFlags(addCmd)
	addCmd.AddFlag("position", "p", "append", "before|after|prepend|append")
	addCmd.AddFlag("text", "", "", "Insert as text instead of HTML (conflicts with the positional html arg)")
	addCmd.AddIntFlag("nth", "", -1, "Narrow to the nth match (0-based)")
	addCmd.AddBoolFlag("first", "", false, "Narrow to the first match")
	addCmd.AddIntFlag("expect", "", -1, "Fail unless the selector matches exactly this many nodes")
	addCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	addScriptCmd := domCmd.Subcommand("add-script", "Inject a boot script for every future navigation", m.handleDomAddScript)
	addScriptCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	removeCmd := domCmd.Subcommand("remove", "Remove every matched node", m.handleDomRemove)
	addSelectorFlags(removeCmd)
	removeCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	scrollCmd := domCmd.Subcommand("scroll", "Emulate a touch scroll gesture", m.handleDomScroll)
	addSelectorFlags(scrollCmd)
	scrollCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	scrollToCmd := domCmd.Subcommand("scroll-to", "Set an absolute or relative scroll position", m.handleDomScrollTo)
	addSelectorFlags(scrollToCmd)
	scrollToCmd.AddBoolFlag("relative", "", false, "Treat x/y as deltas instead of an absolute position")
	scrollToCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	fillCmd := domCmd.Subcommand("fill", "Set an input/textarea/select value and dispatch input+change", m.handleDomFill)
	addSelectorFlags(fillCmd)
	fillCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	setFileCmd := domCmd.Subcommand("set-file", "Set a file input's files", m.handleDomSetFile)
	addSelectorFlags(setFileCmd)
	setFileCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	modifyCmd := orpheus.NewCommand("modify", "Mutate an attribute/class/style/text/HTML of every matched node")
	attrCmd := modifyCmd.Subcommand("attr", "Set or remove an attribute", m.handleDomModifyAttr)
	addSelectorFlags(attrCmd)
	attrCmd.AddBoolFlag("remove", "", false, "Remove the attribute instead of setting it")
	attrCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	classCmd := modifyCmd.Subcommand("class", "Add/remove/toggle a class", m.handleDomModifyClass)
	addSelectorFlags(classCmd)
	classCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	styleCmd := modifyCmd.Subcommand("style", "Set an inline CSS property", m.handleDomModifyStyle)
	addSelectorFlags(styleCmd)
	styleCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	textCmd := modifyCmd.Subcommand("text", "Set textContent", m.handleDomModifyText)
	addSelectorFlags(textCmd)
	textCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	htmlCmd := modifyCmd.Subcommand("html", "Set innerHTML", m.handleDomModifyHTML)
	addSelectorFlags(htmlCmd)
	htmlCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	domCmd.AddSubcommand(modifyCmd)
	m.app.AddCommand(domCmd)
}

func (m *Manager) handleDomTree(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := selectorBody(ctx)
	body["depth"] = ctx.GetFlagInt("depth")
	body["maxNodes"] = ctx.GetFlagInt("max-nodes")
	var result domops.TreeResult
	if err := client.post(context.Background(), "/dom/tree", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) { fmt.Printf("%+v\n", result) })
	return nil
}

func (m *Manager) handleDomInfo(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	sel := selectorFrom(ctx)
	body := map[string]any{
		"selector": sel.Selector, "all": sel.All, "text": sel.Text,
		"outerHtmlMaxChars": ctx.GetFlagInt("outer-html-max-chars"),
	}
	var result domops.InfoResult
	if err := client.post(context.Background(), "/dom/info", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) { fmt.Printf("%+v\n", result) })
	return nil
}

func selectorBody(ctx *orpheus.Context) map[string]any {
	sel := selectorFrom(ctx)
	return map[string]any{"selector": sel.Selector, "all": sel.All, "text": sel.Text}
}

func offsetFrom(ctx *orpheus.Context) *domops.Point {
	x, xok := parseFloatFlag(ctx, "x")
	y, yok := parseFloatFlag(ctx, "y")
	if !xok && !yok {
		return nil
	}
	return &domops.Point{X: x, Y: y}
}

func (m *Manager) handleDomHover(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := selectorBody(ctx)
	body["offset"] = offsetFrom(ctx)
	var result domops.HoverResult
	if err := client.post(context.Background(), "/dom/hover", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) { fmt.Printf("matches=%d\n", result.Matches) })
	return nil
}

func (m *Manager) handleDomClick(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := selectorBody(ctx)
	body["offset"] = offsetFrom(ctx)
	var result domops.ClickResult
	if err := client.post(context.Background(), "/dom/click", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) {
		fmt.Printf("matches=%d clicked=%d\n", result.Matches, result.Clicked)
	})
	return nil
}

func (m *Manager) handleDomFocus(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var result domops.HoverResult
	if err := client.post(context.Background(), "/dom/focus", selectorBody(ctx), &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) { fmt.Printf("matches=%d\n", result.Matches) })
	return nil
}

func (m *Manager) handleDomKeyDown(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 1)
	if len(rest) != 1 {
		return usageError("keydown requires a key name")
	}
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := selectorBody(ctx)
	body["key"] = rest[0]
	body["modifiers"] = ctx.GetFlagString("modifiers")
	var result domops.KeyDownResult
	if err := client.post(context.Background(), "/dom/keydown", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) {
		fmt.Printf("matches=%d modifiers=%d\n", result.Matches, result.Modifiers)
	})
	return nil
}

func (m *Manager) handleDomAdd(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 1)
	body := selectorBody(ctx)
	body["position"] = ctx.GetFlagString("position")
	if text := ctx.GetFlagString("text"); text != "" {
		body["text"] = text
	} else if len(rest) == 1 {
		body["html"] = rest[0]
	} else {
		return usageError("add requires either an html argument or --text")
	}
	if nth := ctx.GetFlagInt("nth"); nth >= 0 {
		body["nth"] = nth
	}
	body["first"] = ctx.GetFlagBool("first")
	if expect := ctx.GetFlagInt("expect"); expect >= 0 {
		body["expect"] = expect
	}
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var result domops.MutateResult
	if err := client.post(context.Background(), "/dom/add", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printMutateResult)
	return nil
}

func (m *Manager) handleDomAddScript(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 1)
	if len(rest) != 1 {
		return usageError("add-script requires a source argument")
	}
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var result struct {
		Identifier string `json:"identifier"`
	}
	if err := client.post(context.Background(), "/dom/add-script", map[string]any{"source": rest[0]}, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) { fmt.Println(result.Identifier) })
	return nil
}

func (m *Manager) handleDomRemove(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var result domops.MutateResult
	if err := client.post(context.Background(), "/dom/remove", selectorBody(ctx), &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printMutateResult)
	return nil
}

func (m *Manager) handleDomScroll(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 2)
	if len(rest) != 2 {
		return usageError("scroll requires dx and dy")
	}
	dx, dy := mustFloat(rest[0]), mustFloat(rest[1])
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := selectorBody(ctx)
	body["dx"], body["dy"] = dx, dy
	var result domops.HoverResult
	if err := client.post(context.Background(), "/dom/scroll", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) { fmt.Printf("matches=%d\n", result.Matches) })
	return nil
}

func (m *Manager) handleDomScrollTo(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 2)
	if len(rest) != 2 {
		return usageError("scroll-to requires x and y")
	}
	x, y := mustFloat(rest[0]), mustFloat(rest[1])
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := selectorBody(ctx)
	body["x"], body["y"], body["relative"] = x, y, ctx.GetFlagBool("relative")
	var result domops.HoverResult
	if err := client.post(context.Background(), "/dom/scroll-to", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) { fmt.Printf("matches=%d\n", result.Matches) })
	return nil
}

func (m *Manager) handleDomFill(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 1)
	if len(rest) != 1 {
		return usageError("fill requires a value argument")
	}
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := selectorBody(ctx)
	body["value"] = rest[0]
	var result domops.MutateResult
	if err := client.post(context.Background(), "/dom/fill", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printMutateResult)
	return nil
}

func (m *Manager) handleDomSetFile(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	paths := restArgs(ctx, 1, 32)
	if len(paths) == 0 {
		return usageError("set-file requires at least one path")
	}
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := selectorBody(ctx)
	body["paths"] = paths
	var result domops.MutateResult
	if err := client.post(context.Background(), "/dom/set-file", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printMutateResult)
	return nil
}

func (m *Manager) handleDomModifyAttr(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 2)
	if len(rest) == 0 {
		return usageError("modify attr requires a name")
	}
	attr := map[string]any{"name": rest[0]}
	if ctx.GetFlagBool("remove") || len(rest) == 1 {
		attr["value"] = nil
	} else {
		attr["value"] = rest[1]
	}
	return m.postModify(ctx, id, map[string]any{"attr": attr})
}

func (m *Manager) handleDomModifyClass(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 2)
	if len(rest) != 2 {
		return usageError("modify class requires an op (add|remove|toggle) and a class name")
	}
	return m.postModify(ctx, id, map[string]any{"class": map[string]any{"op": rest[0], "class": rest[1]}})
}

func (m *Manager) handleDomModifyStyle(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 2)
	if len(rest) != 2 {
		return usageError("modify style requires a property and a value")
	}
	return m.postModify(ctx, id, map[string]any{"style": map[string]any{"property": rest[0], "value": rest[1]}})
}

func (m *Manager) handleDomModifyText(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 1)
	if len(rest) != 1 {
		return usageError("modify text requires a value")
	}
	return m.postModify(ctx, id, map[string]any{"text": map[string]any{"value": rest[0]}})
}

func (m *Manager) handleDomModifyHTML(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 1)
	if len(rest) != 1 {
		return usageError("modify html requires a value")
	}
	return m.postModify(ctx, id, map[string]any{"html": map[string]any{"value": rest[0]}})
}

func (m *Manager) postModify(ctx *orpheus.Context, id string, variant map[string]any) error {
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := selectorBody(ctx)
	for k, v := range variant {
		body[k] = v
	}
	var result domops.MutateResult
	if err := client.post(context.Background(), "/dom/modify", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printMutateResult)
	return nil
}

func printMutateResult(v any) {
	r := v.(domops.MutateResult)
	fmt.Printf("matches=%d affected=%d\n", r.Matches, r.Affected)
}
