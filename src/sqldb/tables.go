package sqldb

import (
	"github.com/watcher-go/watcher-go/src/pkg/schema"
)

const (
	TableMovies        = "MOVIES"
	TableSearchResults = "SEARCHRESULTS"
	TableMarkedResults = "MARKEDRESULTS"
)

func text(name string) schema.Column     { return schema.Column{Name: name, Type: "TEXT"} }
func smallint(name string) schema.Column { return schema.Column{Name: name, Type: "SMALLINT"} }

// Catalog 程序使用的全部表结构
// 列只能追加，不能删除或修改类型；旧列改名通过 renames 迁移数据。
var Catalog = schema.MustCatalog([]schema.TableSchema{
	{Name: TableMovies, Columns: []schema.Column{
		text("added_date"),
		text("imdbid"),
		text("title"),
		text("year"),
		text("poster"),
		text("plot"),
		text("url"),
		text("score"),
		text("release_date"),
		text("rated"),
		text("status"),
		text("predb"),
		text("quality"),
		text("finished_date"),
		smallint("finished_score"),
	}},
	{Name: TableSearchResults, Columns: []schema.Column{
		smallint("score"),
		smallint("size"),
		text("category"),
		text("status"),
		text("pubdate"),
		text("title"),
		text("imdbid"),
		text("indexer"),
		text("date_found"),
		text("info_link"),
		text("guid"),
		text("torrentfile"),
		text("resolution"),
		text("type"),
		text("downloadid"),
	}},
	{Name: TableMarkedResults, Columns: []schema.Column{
		text("imdbid"),
		text("guid"),
		text("status"),
	}},
}, map[string][]schema.RenameRule{
	TableMovies: {
		{Column: "url", Legacy: "tomatourl"},
		{Column: "score", Legacy: "tomatorating"},
		{Column: "release_date", Legacy: "released"},
		{Column: "finished_date", Legacy: "finisheddate"},
	},
})
