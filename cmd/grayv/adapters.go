package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andewx/grayv"
	"github.com/andewx/grayv/vkdriver"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// ListAdapters prints every GPU with the checks the session runs on it.
func ListAdapters(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	window, closeWindow, err := openWindow(cfg.Window, false)
	if err != nil {
		return err
	}
	defer closeWindow()

	reports, err := grayv.ProbeAdapters(vkdriver.New(), window, cfg.AppInfo())
	if err != nil {
		return err
	}
	fmt.Print(adapterTable(reports, cfg.Renderer.AdapterPolicy))
	return nil
}

func apiVersion(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22&0x7f, v>>12&0x3ff, v&0xfff)
}

func family(i int) string {
	if i < 0 {
		return "-"
	}
	return fmt.Sprintf("%d", i)
}

// adapterStatus is "selected", the rejection reason, or "ok". Suitable
// adapters can still carry a reason when the policy excludes them.
func adapterStatus(r grayv.AdapterReport) string {
	switch {
	case r.Selected:
		return "selected"
	case len(r.MissingExtensions) > 0:
		return "missing " + strings.Join(r.MissingExtensions, ", ")
	case r.Reason != "":
		return r.Reason
	}
	return "ok"
}

func adapterTable(reports []grayv.AdapterReport, policy string) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Adapter", "Type", "API", "Graphics", "Present", "Formats", "Modes", "Status"})
	for _, r := range reports {
		table.Append([]string{
			r.Name,
			r.Type.String(),
			apiVersion(r.APIVersion),
			family(r.GraphicsFamily),
			family(r.PresentFamily),
			fmt.Sprintf("%d", r.Formats),
			fmt.Sprintf("%d", r.PresentModes),
			adapterStatus(r),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", "POLICY", policy})
	table.Render()
	return buf.String()
}
