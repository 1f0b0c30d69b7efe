package help

const ColdstartYAML = `# web-locator Quick Start

inputs:
  url: "Fetched as static HTML; add --live to render in Chrome"
  file: "Local HTML file, parsed with an estimated layout"
  glob: "batch only, e.g. 'pages/**/*.html'"

outcomes:
  ok: "Locator produced"
  not_found: "No element at the point, or no unique path"
  unsupported: "Text node or unparseable locator"
  exhausted: "Every search pass ran out of combinations"
  stale: "Node is no longer in the document"

commands:
  locate_point: |
    web-locator locate --x 120 --y 340 https://example.com/products

  locate_selector: |
    web-locator locate --selector "#results li:nth-child(2) a" page.html

  hover_in_list: |
    web-locator locate --mode list --container "#results > li" --x 120 --y 340 page.html

  groups: |
    web-locator groups --limit 5 https://example.com/products

  fields: |
    web-locator fields --container "#results > li" https://example.com/products

  paginate: |
    web-locator --live paginate --container "#results > li" https://example.com/products

  batch: |
    web-locator batch --mode groups --concurrency 8 'pages/**/*.html'

  watch: |
    web-locator watch --container "#results > li" page.html

locators:
  - "primary: shortest unique selector, CSS unless XPath is needed"
  - "fallback: anchor attribute selector, only with --fallbacks"
  - "field locators are relative to the container instance"
  - "shadow and frame boundaries appear as ' >> ' in a chain"

warm_cache:
  - "fields stores locators per (page, container) in SQLite"
  - "later runs try stored locators before searching"
  - "'web-locator cache list' shows entries"
  - "'web-locator cache clear [page]' drops them and the page cache"

runs:
  - "batch records each run with one report per input"
  - "report dirs: reports/runs/YYYY-MM-DD-{id} with manifest.json"
  - "'web-locator runs' lists runs, 'web-locator runs show [id]' shows one"

output:
  - "--format json|yaml, --select outcome,locator to keep fields"
  - "logs go to stderr as JSON; --quiet or --verbose"
  - "exit code 1 on any command error"
`
