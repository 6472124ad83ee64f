// Package httpclient turns the configured request template into concrete
// HTTP exchanges.
//
// A [Template] is built once from configuration and resolved per iteration
// against a data row:
//
//	tmpl, err := httpclient.NewTemplate(cfg)
//	if err != nil {
//		return err
//	}
//	spec, err := tmpl.Resolve(record)
//
// Resolution is pure: the same template and row always produce an identical
// [Spec], and the template is never modified.
//
// [HTTPSender] implements [Sender] over a shared client from [NewClient];
// [FastHTTPSender] does the same on fasthttp. A response with any status
// code counts as received; only transport failures are returned as errors.
package httpclient
