package planbuilder

import (
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"golang.org/x/text/cases"
)

// ErrTableNotFound 表不存在
var ErrTableNotFound = errors.New("table not found")

// Column 列定义
type Column struct {
	Name string
	Type string
}

// Table 表定义
type Table struct {
	Name    string
	Columns []Column
}

// Catalog 表元数据来源
type Catalog interface {
	// Table 按名称查找表，名称不区分大小写
	Table(name string) (*Table, error)
}

// MemoryCatalog 内存中的表元数据，并发安全
type MemoryCatalog struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewMemoryCatalog 创建空的内存 catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{tables: make(map[string]*Table)}
}

// foldName 标识符的大小写折叠，cases.Caser 不是并发安全的，每次新建
func foldName(name string) string {
	return cases.Fold().String(name)
}

// AddTable 注册表，重名或列名重复时返回错误
func (c *MemoryCatalog) AddTable(t *Table) error {
	if t.Name == "" {
		return errors.New("table name is empty")
	}
	if len(t.Columns) == 0 {
		return errors.Newf("table %s has no columns", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, col := range t.Columns {
		key := foldName(col.Name)
		if _, dup := seen[key]; dup {
			return errors.Newf("table %s: duplicate column %s", t.Name, col.Name)
		}
		seen[key] = struct{}{}
	}

	key := foldName(t.Name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[key]; exists {
		return errors.Newf("table %s already exists", t.Name)
	}
	copied := &Table{Name: t.Name, Columns: append([]Column(nil), t.Columns...)}
	c.tables[key] = copied
	return nil
}

// Table 按名称查找表
func (c *MemoryCatalog) Table(name string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[foldName(name)]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "%s", name)
	}
	return t, nil
}

// TableNames 返回所有表名，按字母序
func (c *MemoryCatalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		names = append(names, t.Name)
	}
	slices.Sort(names)
	return names
}

// LoadDDL 解析一组 CREATE TABLE 语句并注册表
func (c *MemoryCatalog) LoadDDL(sql string) error {
	stmts, _, err := parser.New().Parse(sql, "", "")
	if err != nil {
		return errors.Wrap(err, "parse DDL failed")
	}
	for _, stmt := range stmts {
		create, ok := stmt.(*ast.CreateTableStmt)
		if !ok {
			return errors.Newf("only CREATE TABLE statements are supported in DDL, got %T", stmt)
		}
		t := &Table{Name: create.Table.Name.String()}
		for _, col := range create.Cols {
			t.Columns = append(t.Columns, Column{
				Name: col.Name.Name.String(),
				Type: simplifyTypeName(col.Tp.String()),
			})
		}
		if err := c.AddTable(t); err != nil {
			return err
		}
	}
	return nil
}

// simplifyTypeName 移除长度、精度和修饰，例如 DECIMAL(10,2) UNSIGNED -> decimal
func simplifyTypeName(fullType string) string {
	if idx := strings.IndexAny(fullType, "( "); idx != -1 {
		fullType = fullType[:idx]
	}
	return strings.ToLower(fullType)
}
